// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v4/cmdtesting"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type removeSuite struct {
	baseSuite
}

var _ = gc.Suite(&removeSuite{})

const removeTestBundle = `
applications:
  db:
    charm: cs:~me/db
  web:
    charm: cs:~me/web
`

func (s *removeSuite) run(c *gc.C, args ...string) error {
	_, err := cmdtesting.RunCommand(c, &removeCommand{runner: s.runner}, args...)
	return err
}

func (s *removeSuite) TestRemoveAll(c *gc.C) {
	path := s.writeBundle(c, removeTestBundle)
	err := s.run(c, "-b", path)
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.stub.Calls(), gc.HasLen, 2)
	s.runCall(c, 0, "Run", "juju", "remove-application", "db")
	s.runCall(c, 1, "Run", "juju", "remove-application", "web")
}

func (s *removeSuite) TestRemoveSubset(c *gc.C) {
	path := s.writeBundle(c, removeTestBundle)
	err := s.run(c, "-b", path, "-a", "web")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.stub.Calls(), gc.HasLen, 1)
	s.runCall(c, 0, "Run", "juju", "remove-application", "web")
}

func (s *removeSuite) TestRemoveUnknownApplication(c *gc.C) {
	path := s.writeBundle(c, removeTestBundle)
	err := s.run(c, "-b", path, "-a", "nope")
	c.Assert(err, gc.ErrorMatches, `application "nope" not found`)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *removeSuite) TestRemoveInvalidApplicationName(c *gc.C) {
	err := s.run(c, "-a", "not an app")
	c.Assert(err, gc.ErrorMatches, `application name "not an app" not valid`)
}

func (s *removeSuite) TestRemoveStopsOnFirstFailure(c *gc.C) {
	path := s.writeBundle(c, removeTestBundle)
	s.stub.SetErrors(errors.New("boom"))
	err := s.run(c, "-b", path)
	c.Assert(err, gc.ErrorMatches, `removing "db": boom`)
	c.Assert(s.stub.Calls(), gc.HasLen, 1)
}
