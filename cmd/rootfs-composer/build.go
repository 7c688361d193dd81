package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/binfmt"
	"github.com/osbuild/rootfs-composer/internal/mount"
	"github.com/osbuild/rootfs-composer/internal/pipeline"
	"github.com/osbuild/rootfs-composer/internal/runner"
	"github.com/osbuild/rootfs-composer/internal/target"
	"github.com/osbuild/rootfs-composer/internal/ubuntu"
)

// requireRoot fails unless the process may mount and chroot.
var requireRoot = func() error {
	if os.Geteuid() != 0 {
		return errors.New("build needs root privileges")
	}
	return nil
}

// newBuildDeps wires the builder to the host. verbose streams the output
// of external commands to stderr.
var newBuildDeps = func(logger logrus.FieldLogger, verbose bool, d ubuntu.Downloader) (ubuntu.Dependencies, error) {
	host, err := arch.Host()
	if err != nil {
		return ubuntu.Dependencies{}, err
	}

	var output io.Writer
	if verbose {
		output = os.Stderr
	}
	r := runner.NewHostRunner(logger, output)

	return ubuntu.Dependencies{
		Runner:     r,
		Mounts:     mount.NewManager(mount.HostSyscalls(), mount.DefaultMountInfo, logger),
		Binfmt:     binfmt.NewRegistrar(r, binfmt.DefaultDir, logger),
		Downloader: d,
		Host:       host,
	}, nil
}

func newBuildCmd(c *composer) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bootstrap, configure and package the Ubuntu root filesystems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Build
			targets, err := selectTargets(target.OSUbuntu, cfg.Versions, cfg.Architectures, opts)
			if err != nil {
				return err
			}
			if err := requireRoot(); err != nil {
				return err
			}

			logger := logrus.StandardLogger()
			deps, err := newBuildDeps(logger, c.verbose, c.httpClient())
			if err != nil {
				return err
			}
			layout := target.Layout{Root: filepath.Join(c.config.Output, string(target.OSUbuntu))}
			builder, err := ubuntu.NewBuilder(cfg.ubuntu(), layout, deps)
			if err != nil {
				return err
			}

			report := pipeline.Run(cmd.Context(), pipeline.Options{
				Name:   "build",
				Policy: c.policy(opts.stopOnFailure || cfg.StopOnFailure),
				Logger: logger,
				RunID:  c.runID,
			}, targets, builder.Build)
			return c.finish(report, opts.report)
		},
	}
	opts.register(cmd)
	return cmd
}
