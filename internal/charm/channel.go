// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/errors"
)

// Channel is a named charm store release track. Channels are only ever
// compared for identity; there is no ordering between them.
type Channel string

const (
	Stable    Channel = "stable"
	Candidate Channel = "candidate"
	Beta      Channel = "beta"
	Edge      Channel = "edge"
)

// Channels lists the release tracks the store knows about.
var Channels = []Channel{
	Stable,
	Candidate,
	Beta,
	Edge,
}

// ParseChannel parses a string representing a store channel.
func ParseChannel(s string) (Channel, error) {
	if s == "" {
		return "", errors.NotValidf("empty channel")
	}
	for _, ch := range Channels {
		if s == string(ch) {
			return ch, nil
		}
	}
	return "", errors.NotValidf("channel %q", s)
}

func (ch Channel) String() string {
	return string(ch)
}
