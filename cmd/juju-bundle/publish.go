// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/utils/v4/fs"
	"github.com/juju/utils/v4/parallel"

	"github.com/juju/juju-bundle/internal/bundle"
	"github.com/juju/juju-bundle/internal/charm"
	"github.com/juju/juju-bundle/internal/charmpath"
	"github.com/juju/juju-bundle/internal/run"
	"github.com/juju/juju-bundle/internal/store"
)

const publishDoc = `
Publishes a bundle and its charms to the charm store.

Only applications that declare both a charm URL and a source are
published; each is built, pushed to its charm URL and released to the
edge channel. The bundle itself is then rewritten to pin the exact
revisions just published, pushed to the store and released to edge.

To move the bundle and its charms to other channels afterwards, use
juju bundle promote.

Examples:
    juju bundle publish --url cs:~owner/my-bundle
    juju bundle publish --url cs:~owner/my-bundle --serial --prune
`

func newPublishCommand() cmd.Command {
	return &publishCommand{}
}

type publishCommand struct {
	cmd.CommandBase

	bundle string
	url    string
	serial bool
	prune  bool

	runner run.Runner
}

// Info implements Command.Info.
func (c *publishCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "publish",
		Purpose: "publish a bundle and its charms to the charm store",
		Doc:     publishDoc,
	}
}

// SetFlags implements Command.SetFlags.
func (c *publishCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.bundle, "b", "bundle.yaml", "")
	f.StringVar(&c.bundle, "bundle", "bundle.yaml", "the bundle file to publish")
	f.StringVar(&c.url, "url", "", "the charm store URL for the bundle")
	f.BoolVar(&c.serial, "serial", false, "build and publish one charm at a time")
	f.BoolVar(&c.prune, "prune", false, "prune docker between charms; requires --serial")
}

// Init implements Command.Init.
func (c *publishCommand) Init(args []string) error {
	if c.url == "" {
		return errors.New("--url is required")
	}
	if c.prune && !c.serial {
		return errors.NotValidf("--prune without --serial")
	}
	return cmd.CheckEmpty(args)
}

// Run implements Command.Run.
func (c *publishCommand) Run(ctx *cmd.Context) error {
	runner := c.runner
	if runner == nil {
		runner = run.ContextRunner(ctx)
	}
	client := store.NewClient(runner)

	path := ctx.AbsPath(c.bundle)
	b, err := bundle.Load(path)
	if err != nil {
		return errors.Trace(err)
	}

	// Log in once up front so concurrent pushes don't each spawn a
	// login page.
	ctx.Infof("logging in to the charm store, this may open a browser window")
	if err := client.Login(); err != nil {
		return errors.Trace(err)
	}

	// Only applications with both a source to build and a charm URL
	// to push to can be published.
	eligible := make([]string, 0, len(b.Applications))
	for name, app := range b.Applications {
		if app.Charm != "" && app.Source != "" {
			eligible = append(eligible, name)
		}
	}
	sort.Strings(eligible)
	ctx.Infof("publishing %d applications: %s", len(eligible), strings.Join(eligible, ", "))

	publishOne := func(name string) (string, error) {
		app := b.Applications[name]
		sourcePath := charmpath.ResolveSource(app.Source, filepath.Dir(path))
		dir, err := charm.ReadCharmDir(sourcePath)
		if err != nil {
			return "", errors.Trace(err)
		}
		if err := dir.Build(runner, name); err != nil {
			return "", errors.Trace(err)
		}
		built := filepath.Join(charmpath.BuildDir(), dir.Meta.Name)
		revision, err := client.Push(built, app.Charm, app.Resources)
		if err != nil {
			return "", errors.Trace(err)
		}
		if err := client.Release(revision, charm.Edge); err != nil {
			return "", errors.Trace(err)
		}
		if c.prune {
			if err := runner.Run("docker", "system", "prune", "-af"); err != nil {
				return "", errors.Annotate(err, "pruning docker")
			}
		}
		return revision, nil
	}

	revisions := make(map[string]string, len(eligible))
	if c.serial {
		for _, name := range eligible {
			ctx.Infof("publishing %s", name)
			revision, err := publishOne(name)
			if err != nil {
				return errors.Trace(err)
			}
			revisions[name] = revision
		}
	} else if len(eligible) > 0 {
		results := make([]string, len(eligible))
		tasks := parallel.NewRun(len(eligible))
		for i, name := range eligible {
			i, name := i, name
			tasks.Do(func() error {
				revision, err := publishOne(name)
				if err != nil {
					return errors.Trace(err)
				}
				results[i] = revision
				return nil
			})
		}
		if err := tasks.Wait(); err != nil {
			return err
		}
		for i, name := range eligible {
			revisions[name] = results[i]
		}
	}

	// Pin the published revisions into a copy of the bundle; the
	// bundle as loaded is left untouched.
	work, err := b.Clone()
	if err != nil {
		return errors.Trace(err)
	}
	for name, revision := range revisions {
		work.Applications[name].Charm = revision
	}

	dir, err := os.MkdirTemp("", "juju-bundle-publish-")
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()
	if err := work.Save(filepath.Join(dir, "bundle.yaml")); err != nil {
		return errors.Trace(err)
	}

	// charm push refuses a bundle directory without a README.
	readme := filepath.Join(filepath.Dir(path), "README.md")
	if err := fs.Copy(readme, filepath.Join(dir, "README.md")); err != nil {
		return errors.Annotatef(err, "copying %q", readme)
	}

	bundleRevision, err := client.Push(dir, c.url, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := client.Release(bundleRevision, charm.Edge); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("published %s to %s", bundleRevision, charm.Edge)
	return nil
}
