// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm models the small slice of a charm that the bundle
// plugin needs: the source directory on disk, the charm name and the
// resources declared in metadata.yaml, and the ability to drive a
// build of that source through the external charm tooling.
package charm

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"

	"github.com/juju/juju-bundle/internal/run"
)

var logger = loggo.GetLogger("juju.plugins.bundle.charm")

// ResourceMeta is the declaration of one resource in a charm's
// metadata.yaml.
type ResourceMeta struct {
	Type           string
	Path           string
	Description    string
	UpstreamSource string
}

// Meta holds the fields of metadata.yaml that the plugin interprets.
type Meta struct {
	Name      string
	Resources map[string]ResourceMeta
}

// CharmDir is a charm source directory loaded from disk.
type CharmDir struct {
	Path string
	Meta Meta
}

var resourceSchema = schema.FieldMap(
	schema.Fields{
		"type":            schema.String(),
		"filename":        schema.String(),
		"description":     schema.String(),
		"upstream-source": schema.String(),
	},
	schema.Defaults{
		"type":            "file",
		"filename":        "",
		"description":     "",
		"upstream-source": "",
	},
)

// ReadCharmDir loads the charm source at the given path by parsing its
// metadata.yaml.
func ReadCharmDir(path string) (*CharmDir, error) {
	metaPath := filepath.Join(path, "metadata.yaml")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q", metaPath)
	}
	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotatef(err, "parsing %q", metaPath)
	}

	name, err := schema.String().Coerce(raw["name"], []string{"name"})
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %q", metaPath)
	}
	resources, err := parseMetaResources(raw["resources"])
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %q", metaPath)
	}
	return &CharmDir{
		Path: path,
		Meta: Meta{
			Name:      name.(string),
			Resources: resources,
		},
	}, nil
}

// parseMetaResources parses the resources section of metadata.yaml,
// assuming the usual yaml v2 representation of nested documents.
func parseMetaResources(data interface{}) (map[string]ResourceMeta, error) {
	if data == nil {
		return nil, nil
	}
	coerced, err := schema.StringMap(resourceSchema).Coerce(data, []string{"resources"})
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string]ResourceMeta)
	for name, val := range coerced.(map[string]interface{}) {
		fields := val.(map[string]interface{})
		result[name] = ResourceMeta{
			Type:           fields["type"].(string),
			Path:           fields["filename"].(string),
			Description:    fields["description"].(string),
			UpstreamSource: fields["upstream-source"].(string),
		}
	}
	return result, nil
}

// Build runs the external charm build for this source directory. The
// built charm lands in the tooling's build directory under the charm's
// metadata name.
func (d *CharmDir) Build(runner run.Runner, appName string) error {
	logger.Debugf("building charm %q for application %q", d.Meta.Name, appName)
	if err := runner.Run("charm", "build", d.Path); err != nil {
		return errors.Annotatef(err, "building charm for application %q", appName)
	}
	return nil
}
