// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v4"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("juju.plugins.bundle")

const bundleDoc = `
juju bundle operates on a bundle of charms as a whole: deploying it to
or removing it from the current model, publishing the bundle and the
charms it builds to the charm store, and promoting already-published
revisions from one channel to another.
`

// Main runs the juju bundle plugin with the given argv and returns the
// process exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:        "bundle",
		UsagePrefix: "juju",
		Doc:         bundleDoc,
		Purpose:     "deploy, remove, publish and promote charm bundles",
		Log:         &cmd.Log{},
		NotifyRun: func(name string) {
			logger.Infof("running bundle %s", name)
		},
	})
	super.Register(newDeployCommand())
	super.Register(newRemoveCommand())
	super.Register(newPublishCommand())
	super.Register(newPromoteCommand())
	return cmd.Main(super, ctx, args[1:])
}

func main() {
	os.Exit(Main(os.Args))
}
