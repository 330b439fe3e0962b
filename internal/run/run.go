// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package run supplies the subprocess capability used to drive the
// external juju, charm and docker commands. Everything the plugin does
// to the outside world goes through a Runner, so tests can substitute
// one that records calls and simulates failures.
package run

import (
	"bytes"
	"os/exec"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("juju.plugins.bundle.run")

// Runner executes external commands on behalf of the plugin.
type Runner interface {
	// Run executes the named command with the command context's
	// stdio attached, returning an error on non-zero exit.
	Run(name string, args ...string) error

	// Output executes the named command with stdout captured and
	// returned. Stderr remains attached to the command context.
	Output(name string, args ...string) ([]byte, error)
}

// ContextRunner returns a Runner that attaches subprocesses to the
// given command context, the same way juju hands terminal control to
// external plugins.
func ContextRunner(ctx *cmd.Context) Runner {
	return contextRunner{ctx: ctx}
}

type contextRunner struct {
	ctx *cmd.Context
}

func (r contextRunner) Run(name string, args ...string) error {
	logger.Debugf("running %s %v", name, args)
	command := exec.Command(name, args...)
	command.Stdin = r.ctx.Stdin
	command.Stdout = r.ctx.Stdout
	command.Stderr = r.ctx.Stderr
	if err := command.Run(); err != nil {
		return errors.Annotatef(err, "running %q", name)
	}
	return nil
}

func (r contextRunner) Output(name string, args ...string) ([]byte, error) {
	logger.Debugf("running %s %v", name, args)
	var stdout bytes.Buffer
	command := exec.Command(name, args...)
	command.Stdin = r.ctx.Stdin
	command.Stdout = &stdout
	command.Stderr = r.ctx.Stderr
	if err := command.Run(); err != nil {
		return nil, errors.Annotatef(err, "running %q", name)
	}
	return stdout.Bytes(), nil
}
