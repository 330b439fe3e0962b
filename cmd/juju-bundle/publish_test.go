// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"

	"github.com/juju/cmd/v4/cmdtesting"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type publishSuite struct {
	baseSuite

	buildDir string
}

var _ = gc.Suite(&publishSuite{})

func (s *publishSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.buildDir = c.MkDir()
	s.PatchEnvironment("CHARM_BUILD_DIR", s.buildDir)
}

const publishTestBundle = `
applications:
  db:
    charm: cs:~me/db
    source: ./db-src
  web:
    charm: cs:~me/web
    source: ./web-src
    resources:
      image: explicit-image
  ext:
    charm: cs:~me/ext
  local:
    source: ./db-src
`

func (s *publishSuite) run(c *gc.C, args ...string) error {
	_, err := cmdtesting.RunCommand(c, &publishCommand{runner: s.runner}, args...)
	return err
}

// writePublishFixture lays out the bundle, its README and the charm
// sources it references, and primes the stub store.
func (s *publishSuite) writePublishFixture(c *gc.C) string {
	path := s.writeBundle(c, publishTestBundle)
	err := os.WriteFile(filepath.Join(filepath.Dir(path), "README.md"), []byte("# test bundle\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	s.writeCharmSource(c, path, "db-src", "name: db\n")
	s.writeCharmSource(c, path, "web-src", "name: web\n")
	s.runner.outputs["cs:~me/db"] = "url: cs:~me/db-3\n"
	s.runner.outputs["cs:~me/web"] = "url: cs:~me/web-7\n"
	s.runner.outputs["cs:~me/bundle"] = "url: cs:~me/bundle-1\n"
	return path
}

func (s *publishSuite) TestPublishRequiresURL(c *gc.C) {
	err := s.run(c)
	c.Assert(err, gc.ErrorMatches, "--url is required")
}

func (s *publishSuite) TestPublishPruneRequiresSerial(c *gc.C) {
	err := s.run(c, "--url", "cs:~me/bundle", "--prune")
	c.Assert(err, gc.ErrorMatches, `--prune without --serial not valid`)
	c.Assert(s.stub.Calls(), gc.HasLen, 0)
}

func (s *publishSuite) TestPublishSerial(c *gc.C) {
	path := s.writePublishFixture(c)
	err := s.run(c, "-b", path, "--url", "cs:~me/bundle", "--serial")
	c.Assert(err, jc.ErrorIsNil)

	dir := filepath.Dir(path)
	c.Assert(s.stub.Calls(), gc.HasLen, 9)
	s.runCall(c, 0, "Run", "charm", "login")
	s.runCall(c, 1, "Run", "charm", "build", filepath.Join(dir, "db-src"))
	s.runCall(c, 2, "Output", "charm", "push", filepath.Join(s.buildDir, "db"), "cs:~me/db")
	s.runCall(c, 3, "Run", "charm", "release", "cs:~me/db-3", "--channel", "edge")
	s.runCall(c, 4, "Run", "charm", "build", filepath.Join(dir, "web-src"))
	s.runCall(c, 5, "Output", "charm", "push", filepath.Join(s.buildDir, "web"), "cs:~me/web",
		"--resource", "image=explicit-image")
	s.runCall(c, 6, "Run", "charm", "release", "cs:~me/web-7", "--channel", "edge")
	s.runCall(c, 8, "Run", "charm", "release", "cs:~me/bundle-1", "--channel", "edge")

	bundlePush := s.stub.Calls()[7]
	c.Check(bundlePush.FuncName, gc.Equals, "Output")
	pushArgs := bundlePush.Args[1].([]string)
	c.Check(pushArgs[0], gc.Equals, "push")
	c.Check(pushArgs[2], gc.Equals, "cs:~me/bundle")
}

func (s *publishSuite) TestPublishPinsRevisions(c *gc.C) {
	path := s.writePublishFixture(c)
	err := s.run(c, "-b", path, "--url", "cs:~me/bundle", "--serial")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.runner.pushedBundles, gc.HasLen, 1)
	pinned := s.runner.pushedBundles[0]
	c.Check(pinned, jc.Contains, "cs:~me/db-3")
	c.Check(pinned, jc.Contains, "cs:~me/web-7")
	// Applications that were not published keep their charms.
	c.Check(pinned, jc.Contains, "cs:~me/ext")
}

func (s *publishSuite) TestPublishPrune(c *gc.C) {
	path := s.writePublishFixture(c)
	err := s.run(c, "-b", path, "--url", "cs:~me/bundle", "--serial", "--prune")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.stub.Calls(), gc.HasLen, 11)
	s.runCall(c, 4, "Run", "docker", "system", "prune", "-af")
	s.runCall(c, 9, "Run", "docker", "system", "prune", "-af")
}

func (s *publishSuite) TestPublishParallelFailureSkipsBundle(c *gc.C) {
	path := s.writeBundle(c, `
applications:
  db:
    charm: cs:~me/db
    source: ./db-src
`)
	s.writeCharmSource(c, path, "db-src", "name: db\n")
	s.stub.SetErrors(nil, nil, errors.New("boom"))

	err := s.run(c, "-b", path, "--url", "cs:~me/bundle")
	c.Assert(err, gc.ErrorMatches, `pushing .* to "cs:~me/db": boom`)
	// The bundle itself is never pushed or released.
	c.Assert(s.stub.Calls(), gc.HasLen, 3)
}

func (s *publishSuite) TestPublishMissingReadme(c *gc.C) {
	path := s.writeBundle(c, `
applications:
  db:
    charm: cs:~me/db
    source: ./db-src
`)
	s.writeCharmSource(c, path, "db-src", "name: db\n")
	s.runner.outputs["cs:~me/db"] = "url: cs:~me/db-3\n"

	err := s.run(c, "-b", path, "--url", "cs:~me/bundle", "--serial")
	c.Assert(err, gc.ErrorMatches, `copying ".*README.md": .*`)
}
