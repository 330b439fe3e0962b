// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/juju/cmd/v4"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/names/v5"

	"github.com/juju/juju-bundle/internal/bundle"
	"github.com/juju/juju-bundle/internal/run"
)

const deployDoc = `
Deploys a bundle, optionally building and/or recreating it.

Applications with a source are built before deploying when --build is
given, or when they declare no charm at all. If a subset of
applications is chosen with --app, bundle relations are only kept when
both endpoints are selected.

Any arguments after the recognised options are passed through to
juju deploy verbatim.

Examples:
    juju bundle deploy
    juju bundle deploy --build -a web -a db
    juju bundle deploy --recreate -- --trust
`

func newDeployCommand() cmd.Command {
	return &deployCommand{}
}

type deployCommand struct {
	cmd.CommandBase

	recreate      bool
	upgradeCharms bool
	build         bool
	wait          int
	apps          []string
	bundle        string
	deployArgs    []string

	runner run.Runner
}

// Info implements Command.Info.
func (c *deployCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "deploy",
		Args:    "[deploy-args ...]",
		Purpose: "deploy a bundle, optionally building its charms",
		Doc:     deployDoc,
	}
}

// SetFlags implements Command.SetFlags.
func (c *deployCommand) SetFlags(f *gnuflag.FlagSet) {
	f.BoolVar(&c.recreate, "recreate", false, "remove the bundle before deploying it")
	f.BoolVar(&c.upgradeCharms, "upgrade-charms", false, "run upgrade-charm on each application instead of redeploying")
	f.BoolVar(&c.build, "build", false, "build charms from source before deploying; requires source to be set")
	f.IntVar(&c.wait, "wait", 60, "seconds to wait for the model to stabilize before deploying")
	f.Var(cmd.NewAppendStringsValue(&c.apps), "a", "select particular applications to deploy")
	f.Var(cmd.NewAppendStringsValue(&c.apps), "app", "")
	f.StringVar(&c.bundle, "b", "bundle.yaml", "")
	f.StringVar(&c.bundle, "bundle", "bundle.yaml", "the bundle file to deploy")
}

// AllowInterspersedFlags stops flag parsing at the first non-flag
// argument so that everything after it reaches juju deploy untouched.
func (c *deployCommand) AllowInterspersedFlags() bool {
	return false
}

// Init implements Command.Init.
func (c *deployCommand) Init(args []string) error {
	for _, name := range c.apps {
		if !names.IsValidApplication(name) {
			return errors.NotValidf("application name %q", name)
		}
	}
	c.deployArgs = args
	return nil
}

// Run implements Command.Run.
func (c *deployCommand) Run(ctx *cmd.Context) error {
	runner := c.runner
	if runner == nil {
		runner = run.ContextRunner(ctx)
	}

	ctx.Infof("building and deploying bundle from %s", c.bundle)

	path := ctx.AbsPath(c.bundle)
	b, err := bundle.Load(path)
	if err != nil {
		return errors.Trace(err)
	}
	apps, err := b.AppSubset(c.apps)
	if err != nil {
		return errors.Trace(err)
	}

	buildable := 0
	for _, app := range apps {
		if app.Source != "" {
			buildable++
		}
	}
	ctx.Infof("found %d applications, %d to build", len(apps), buildable)

	resolved, err := bundle.ResolveAll(apps, bundle.ResolveParams{
		Build:     c.build,
		BundleDir: filepath.Dir(path),
		Runner:    runner,
	})
	if err != nil {
		return errors.Trace(err)
	}

	selected := set.NewStrings()
	for name := range resolved {
		selected.Add(name)
	}

	// Upgrading charms needs none of the teardown or deployment
	// sequencing below.
	if c.upgradeCharms {
		return errors.Trace(upgradeCharms(ctx, runner, resolved))
	}

	work, err := b.Clone()
	if err != nil {
		return errors.Trace(err)
	}
	work.Applications = resolved
	work.FilterRelations(selected)

	tmp, err := os.CreateTemp("", "bundle-*.yaml")
	if err != nil {
		return errors.Trace(err)
	}
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := work.Save(tmp.Name()); err != nil {
		return errors.Trace(err)
	}

	if c.recreate {
		ctx.Infof("removing bundle before deploy")
		if err := removeApplications(ctx, runner, selected.SortedValues()); err != nil {
			return errors.Trace(err)
		}
	}

	if c.wait > 0 {
		ctx.Infof("waiting for model to stabilize before deploying")
		if err := runner.Run("juju", "wait", "-wv", "-t", strconv.Itoa(c.wait)); err != nil {
			return errors.Annotate(err, "waiting for model to stabilize")
		}
	}

	ctx.Infof("deploying bundle")
	args := append([]string{"deploy", tmp.Name()}, c.deployArgs...)
	if err := runner.Run("juju", args...); err != nil {
		return errors.Annotate(err, "deploying bundle")
	}
	return nil
}

// upgradeCharms switches every resolved application to its resolved
// charm instead of redeploying the bundle.
func upgradeCharms(ctx *cmd.Context, runner run.Runner, apps map[string]*bundle.Application) error {
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx.Infof("upgrading %s", name)
		if err := runner.Run("juju", "upgrade-charm", name, "--switch", apps[name].Charm); err != nil {
			return errors.Annotatef(err, "upgrading %q", name)
		}
	}
	return nil
}
