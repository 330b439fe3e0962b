// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"sort"

	"github.com/juju/cmd/v4"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/juju-bundle/internal/charm"
	"github.com/juju/juju-bundle/internal/run"
	"github.com/juju/juju-bundle/internal/store"
)

const promoteDoc = `
Promotes a bundle and its charms from one channel to another.

The bundle published to the source channel is fetched from the store
and every charm it pins is released to the target channel, except
applications that are excluded or have no source (those are managed
outside this bundle). The bundle itself is promoted only after every
charm promotion succeeded.

Examples:
    juju bundle promote -b cs:~owner/my-bundle --from edge --to candidate
    juju bundle promote -b cs:~owner/my-bundle --from candidate --to stable -e web
`

func newPromoteCommand() cmd.Command {
	return &promoteCommand{}
}

type promoteCommand struct {
	cmd.CommandBase

	bundle   string
	fromRaw  string
	toRaw    string
	from     charm.Channel
	to       charm.Channel
	excluded []string

	runner run.Runner
}

// Info implements Command.Info.
func (c *promoteCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "promote",
		Purpose: "promote a bundle and its charms between channels",
		Doc:     promoteDoc,
	}
}

// SetFlags implements Command.SetFlags.
func (c *promoteCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.bundle, "b", "", "")
	f.StringVar(&c.bundle, "bundle", "", "the bundle to promote")
	f.StringVar(&c.fromRaw, "from", "", "the channel to promote from")
	f.StringVar(&c.toRaw, "to", "", "the channel to promote to")
	f.Var(cmd.NewAppendStringsValue(&c.excluded), "e", "select particular applications to exclude from promoting")
	f.Var(cmd.NewAppendStringsValue(&c.excluded), "exclude", "")
}

// Init implements Command.Init.
func (c *promoteCommand) Init(args []string) error {
	if c.bundle == "" {
		return errors.New("--bundle is required")
	}
	var err error
	if c.from, err = charm.ParseChannel(c.fromRaw); err != nil {
		return errors.Trace(err)
	}
	if c.to, err = charm.ParseChannel(c.toRaw); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args)
}

// Run implements Command.Run.
func (c *promoteCommand) Run(ctx *cmd.Context) error {
	runner := c.runner
	if runner == nil {
		runner = run.ContextRunner(ctx)
	}
	client := store.NewClient(runner)

	b, revision, err := client.PullBundle(c.bundle, c.from)
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("found bundle revision %d", revision)

	excluded := set.NewStrings(c.excluded...)
	names := make([]string, 0, len(b.Applications))
	for name := range b.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		app := b.Applications[name]
		// Applications without a source are managed outside this
		// bundle and never promoted with it.
		if app.Source == "" || excluded.Contains(name) {
			continue
		}
		ctx.Infof("promoting %s to %s", name, c.to)
		if err := client.Release(app.Charm, c.to); err != nil {
			return errors.Annotatef(err, "promoting %q", name)
		}
	}

	ctx.Infof("bundle charms promoted, promoting bundle")
	pinned := fmt.Sprintf("%s-%d", c.bundle, revision)
	if err := client.Release(pinned, c.to); err != nil {
		return errors.Annotatef(err, "promoting bundle %q", pinned)
	}
	return nil
}
