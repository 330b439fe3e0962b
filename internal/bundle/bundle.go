// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bundle models a charm bundle: the named applications it
// deploys, the relations between them, and the selection and charm
// resolution logic the plugin's subcommands share.
package bundle

import (
	"os"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Application is one deployable entry in a bundle. At least one of
// Charm and Source must be set; resolution fails otherwise.
type Application struct {
	// Charm is the charm store URL to deploy, if any.
	Charm string `yaml:"charm,omitempty"`

	// Source locates the charm source to build: either a path
	// relative to the bundle file (leading ".") or the name of a
	// directory under the charm source directory.
	Source string `yaml:"source,omitempty"`

	// Resources maps resource names to upstream sources.
	Resources map[string]string `yaml:"resources,omitempty"`

	// Fields carries through any application keys the plugin does
	// not interpret, so saved bundles stay faithful.
	Fields map[string]interface{} `yaml:",inline"`
}

// Clone returns a copy of the application that is safe to mutate
// without affecting the original.
func (a *Application) Clone() *Application {
	clone := &Application{
		Charm:  a.Charm,
		Source: a.Source,
	}
	if a.Resources != nil {
		clone.Resources = make(map[string]string, len(a.Resources))
		for name, source := range a.Resources {
			clone.Resources[name] = source
		}
	}
	if a.Fields != nil {
		clone.Fields = make(map[string]interface{}, len(a.Fields))
		for name, value := range a.Fields {
			clone.Fields[name] = value
		}
	}
	return clone
}

// Bundle is a loaded bundle document. A loaded bundle is never mutated
// in place; operations that rewrite applications derive a Clone first.
type Bundle struct {
	Applications map[string]*Application `yaml:"applications"`

	// Relations are pairs of endpoints, each optionally qualified
	// with an interface ("web:db").
	Relations [][]string `yaml:"relations,omitempty"`

	// Fields carries through bundle-level keys the plugin does not
	// interpret (description, series, ...).
	Fields map[string]interface{} `yaml:",inline"`
}

// Load reads a bundle from the file at path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading bundle at %q", path)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.Annotatef(err, "parsing bundle at %q", path)
	}
	if b.Applications == nil {
		b.Applications = make(map[string]*Application)
	}
	for name, app := range b.Applications {
		if app == nil {
			b.Applications[name] = &Application{}
		}
	}
	return &b, nil
}

// Save writes the bundle to the file at path.
func (b *Bundle) Save(path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Annotatef(err, "writing bundle to %q", path)
	}
	return nil
}

// Clone returns a deep copy of the bundle.
func (b *Bundle) Clone() (*Bundle, error) {
	data, err := yaml.Marshal(b)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var clone Bundle
	if err := yaml.Unmarshal(data, &clone); err != nil {
		return nil, errors.Trace(err)
	}
	if clone.Applications == nil {
		clone.Applications = make(map[string]*Application)
	}
	return &clone, nil
}

// AppSubset returns the named applications, or every application when
// no names are given. Asking for a name the bundle does not define is
// an error: the request came from the user, unlike relations, which
// are bundle-authored and filtered silently.
func (b *Bundle) AppSubset(names []string) (map[string]*Application, error) {
	if len(names) == 0 {
		return b.Applications, nil
	}
	subset := make(map[string]*Application, len(names))
	for _, name := range names {
		app, ok := b.Applications[name]
		if !ok {
			return nil, errors.NotFoundf("application %q", name)
		}
		subset[name] = app
	}
	return subset, nil
}

// FilterRelations drops every relation that mentions an application
// outside the given set. Interface qualifiers are stripped before
// matching.
func (b *Bundle) FilterRelations(apps set.Strings) {
	var kept [][]string
	for _, relation := range b.Relations {
		endpoints := set.NewStrings()
		for _, endpoint := range relation {
			endpoints.Add(endpointApplication(endpoint))
		}
		if endpoints.Difference(apps).IsEmpty() {
			kept = append(kept, relation)
		}
	}
	b.Relations = kept
}

// endpointApplication strips an interface qualifier from a relation
// endpoint, e.g. "web:db" -> "web".
func endpointApplication(endpoint string) string {
	return strings.SplitN(endpoint, ":", 2)[0]
}
