// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"sort"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/names/v5"

	"github.com/juju/juju-bundle/internal/bundle"
	"github.com/juju/juju-bundle/internal/run"
)

const removeDoc = `
Removes a bundle from the current model.

If a subset of applications is chosen with --app, only those
applications are removed.

Examples:
    juju bundle remove
    juju bundle remove -a web
`

func newRemoveCommand() cmd.Command {
	return &removeCommand{}
}

type removeCommand struct {
	cmd.CommandBase

	apps   []string
	bundle string

	runner run.Runner
}

// Info implements Command.Info.
func (c *removeCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "remove",
		Purpose: "remove a bundle from the current model",
		Doc:     removeDoc,
	}
}

// SetFlags implements Command.SetFlags.
func (c *removeCommand) SetFlags(f *gnuflag.FlagSet) {
	f.Var(cmd.NewAppendStringsValue(&c.apps), "a", "select particular applications to remove")
	f.Var(cmd.NewAppendStringsValue(&c.apps), "app", "")
	f.StringVar(&c.bundle, "b", "bundle.yaml", "")
	f.StringVar(&c.bundle, "bundle", "bundle.yaml", "the bundle file to remove")
}

// Init implements Command.Init.
func (c *removeCommand) Init(args []string) error {
	for _, name := range c.apps {
		if !names.IsValidApplication(name) {
			return errors.NotValidf("application name %q", name)
		}
	}
	return cmd.CheckEmpty(args)
}

// Run implements Command.Run.
func (c *removeCommand) Run(ctx *cmd.Context) error {
	runner := c.runner
	if runner == nil {
		runner = run.ContextRunner(ctx)
	}

	b, err := bundle.Load(ctx.AbsPath(c.bundle))
	if err != nil {
		return errors.Trace(err)
	}
	apps, err := b.AppSubset(c.apps)
	if err != nil {
		return errors.Trace(err)
	}
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return errors.Trace(removeApplications(ctx, runner, names))
}

// removeApplications removes the named applications one at a time; the
// first failure aborts the rest.
func removeApplications(ctx *cmd.Context, runner run.Runner, names []string) error {
	for _, name := range names {
		ctx.Infof("removing %s", name)
		if err := runner.Run("juju", "remove-application", name); err != nil {
			return errors.Annotatef(err, "removing %q", name)
		}
	}
	return nil
}
