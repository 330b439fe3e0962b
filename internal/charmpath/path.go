// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmpath resolves the directories used when building charms
// from source. The conventions match the charm tooling: built charms
// land in CHARM_BUILD_DIR and named sources are looked up in
// CHARM_SOURCE_DIR, with JUJU_REPOSITORY as the fallback root for both.
package charmpath

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	buildDirEnvKey   = "CHARM_BUILD_DIR"
	sourceDirEnvKey  = "CHARM_SOURCE_DIR"
	repositoryEnvKey = "JUJU_REPOSITORY"
)

// BuildDir returns the directory that charm build writes built charms
// into.
func BuildDir() string {
	if dir := os.Getenv(buildDirEnvKey); dir != "" {
		return dir
	}
	if dir := os.Getenv(repositoryEnvKey); dir != "" {
		return filepath.Join(dir, "builds")
	}
	return filepath.Join(os.TempDir(), "charm-builds")
}

// SourceDir returns the directory that named charm sources are looked
// up in.
func SourceDir() string {
	if dir := os.Getenv(sourceDirEnvKey); dir != "" {
		return dir
	}
	if dir := os.Getenv(repositoryEnvKey); dir != "" {
		return dir
	}
	return "."
}

// ResolveSource maps an application's source locator to a charm source
// directory. A locator starting with "." is relative to the directory
// holding the bundle file; anything else names a directory under
// SourceDir.
func ResolveSource(source, bundleDir string) string {
	if strings.HasPrefix(source, ".") {
		return filepath.Join(bundleDir, source)
	}
	return filepath.Join(SourceDir(), source)
}
