// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package store wraps the external charm tooling used to talk to the
// charm store: pushing charms and bundles, releasing revisions to
// channels, and discovering what a channel currently holds.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v2"

	"github.com/juju/juju-bundle/internal/bundle"
	"github.com/juju/juju-bundle/internal/charm"
	"github.com/juju/juju-bundle/internal/run"
)

var logger = loggo.GetLogger("juju.plugins.bundle.store")

// Client drives the charm store through the charm command.
type Client struct {
	runner run.Runner
}

// NewClient returns a store client that shells out through runner.
func NewClient(runner run.Runner) *Client {
	return &Client{runner: runner}
}

// Login ensures the user is authenticated against the store. It is
// idempotent and may prompt interactively, so callers run it once up
// front rather than letting every push race to open a browser.
func (c *Client) Login() error {
	if err := c.runner.Run("charm", "login"); err != nil {
		return errors.Annotate(err, "logging in to the charm store")
	}
	return nil
}

// Push uploads the charm or bundle directory at path to the given
// store URL and returns the revision URL the store assigned, e.g.
// "cs:~owner/name-42". Resources are forwarded as name=source pairs.
func (c *Client) Push(path, url string, resources map[string]string) (string, error) {
	args := []string{"push", path, url}
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--resource", name+"="+resources[name])
	}
	out, err := c.runner.Output("charm", args...)
	if err != nil {
		return "", errors.Annotatef(err, "pushing %q to %q", path, url)
	}
	return parsePushRevision(out)
}

// parsePushRevision extracts the revision URL from charm push output,
// which reports the new revision as a "url:" field.
func parsePushRevision(out []byte) (string, error) {
	var result struct {
		URL string `yaml:"url"`
	}
	if err := yaml.Unmarshal(out, &result); err != nil {
		return "", errors.Annotate(err, "parsing charm push output")
	}
	if result.URL == "" {
		return "", errors.Errorf("no revision url in charm push output")
	}
	return result.URL, nil
}

// Release publishes the given revision URL to a channel.
func (c *Client) Release(url string, ch charm.Channel) error {
	logger.Debugf("releasing %s to %s", url, ch)
	if err := c.runner.Run("charm", "release", url, "--channel", ch.String()); err != nil {
		return errors.Annotatef(err, "releasing %q to channel %q", url, ch)
	}
	return nil
}

// ShowRevision reports the revision of ref currently held by the given
// channel.
func (c *Client) ShowRevision(ref string, ch charm.Channel) (int, error) {
	out, err := c.runner.Output("charm", "show", ref, "id", "--channel", ch.String(), "--format", "yaml")
	if err != nil {
		return 0, errors.Annotatef(err, "showing %q in channel %q", ref, ch)
	}
	var result struct {
		ID struct {
			Revision int `yaml:"Revision"`
		} `yaml:"id"`
	}
	if err := yaml.Unmarshal(out, &result); err != nil {
		return 0, errors.Annotate(err, "parsing charm show output")
	}
	return result.ID.Revision, nil
}

// PullBundle fetches the bundle published to the given channel,
// returning the loaded bundle and the revision it was found at.
func (c *Client) PullBundle(ref string, ch charm.Channel) (*bundle.Bundle, int, error) {
	revision, err := c.ShowRevision(ref, ch)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	dir, err := os.MkdirTemp("", "juju-bundle-pull-")
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "bundle")
	pinned := fmt.Sprintf("%s-%d", ref, revision)
	if err := c.runner.Run("charm", "pull", pinned, "--channel", ch.String(), target); err != nil {
		return nil, 0, errors.Annotatef(err, "pulling %q", pinned)
	}
	b, err := bundle.Load(filepath.Join(target, "bundle.yaml"))
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return b, revision, nil
}
