package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/publish"
	"github.com/osbuild/rootfs-composer/internal/ubuntu"
)

var (
	ParseConfig   = parseConfig
	DefaultConfig = defaultConfig
	Run           = run
)

func MockRequireRoot(err error) (restore func()) {
	saved := requireRoot
	requireRoot = func() error { return err }
	return func() {
		requireRoot = saved
	}
}

func MockBuildDeps(deps ubuntu.Dependencies) (restore func()) {
	saved := newBuildDeps
	newBuildDeps = func(logrus.FieldLogger, bool, ubuntu.Downloader) (ubuntu.Dependencies, error) {
		return deps, nil
	}
	return func() {
		newBuildDeps = saved
	}
}

func MockUploader(u publish.Uploader) (restore func()) {
	saved := newUploader
	newUploader = func(context.Context, *publishConfig) (publish.Uploader, error) {
		return u, nil
	}
	return func() {
		newUploader = saved
	}
}

// Redacted exposes the logged form of a configuration.
func Redacted(c *composerConfig) composerConfig {
	return c.redacted()
}
