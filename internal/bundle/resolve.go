// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bundle

import (
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4/parallel"

	"github.com/juju/juju-bundle/internal/charm"
	"github.com/juju/juju-bundle/internal/charmpath"
	"github.com/juju/juju-bundle/internal/run"
)

var logger = loggo.GetLogger("juju.plugins.bundle")

// ResolveParams configures charm resolution for one operation.
type ResolveParams struct {
	// Build requests that applications with a source are built even
	// when they already name a charm.
	Build bool

	// BundleDir is the directory holding the bundle file; relative
	// source locators resolve against it.
	BundleDir string

	// Runner executes the external build tooling.
	Runner run.Runner
}

// ResolveCharm decides whether the named application deploys its
// declared charm or one built from source, and returns a resolved copy
// of the application. The input application is never mutated.
//
// The decision is a closed match over (build, charm, source):
//
//	charm set, and build unset or source unset -> use the charm as-is
//	neither charm nor source set               -> error
//	source set, and build set or charm unset   -> build from source
func ResolveCharm(name string, app *Application, p ResolveParams) (*Application, error) {
	resolved := app.Clone()
	charmSet := app.Charm != ""
	sourceSet := app.Source != ""
	switch {
	case charmSet && (!p.Build || !sourceSet):
		// Deploy the declared charm.

	case !charmSet && !sourceSet:
		return nil, errors.Errorf("application %q has neither charm nor source set", name)

	default:
		sourcePath := charmpath.ResolveSource(app.Source, p.BundleDir)
		dir, err := charm.ReadCharmDir(sourcePath)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := dir.Build(p.Runner, name); err != nil {
			return nil, errors.Trace(err)
		}
		for resName, res := range dir.Meta.Resources {
			if res.UpstreamSource == "" {
				continue
			}
			if _, declared := resolved.Resources[resName]; declared {
				// Resources declared in the bundle win over
				// build-derived upstream sources.
				continue
			}
			if resolved.Resources == nil {
				resolved.Resources = make(map[string]string)
			}
			resolved.Resources[resName] = res.UpstreamSource
		}
		resolved.Charm = filepath.Join(charmpath.BuildDir(), dir.Meta.Name)
	}
	return resolved, nil
}

// ResolveAll resolves every given application concurrently. All tasks
// are dispatched and joined before any result is inspected: a failing
// task neither cancels nor rolls back its siblings, and the error
// surfaced when any task failed has no defined priority among the
// failures. On success the returned map holds exactly one resolved
// entry per input application.
func ResolveAll(apps map[string]*Application, p ResolveParams) (map[string]*Application, error) {
	if len(apps) == 0 {
		return map[string]*Application{}, nil
	}
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)

	logger.Debugf("resolving %d applications", len(names))

	results := make([]*Application, len(names))
	tasks := parallel.NewRun(len(names))
	for i, name := range names {
		i, name := i, name
		tasks.Do(func() error {
			resolved, err := ResolveCharm(name, apps[name], p)
			if err != nil {
				return errors.Trace(err)
			}
			results[i] = resolved
			return nil
		})
	}
	if err := tasks.Wait(); err != nil {
		return nil, err
	}

	resolved := make(map[string]*Application, len(names))
	for i, name := range names {
		resolved[name] = results[i]
	}
	return resolved, nil
}
