package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/alpine"
	"github.com/osbuild/rootfs-composer/internal/fetch"
	"github.com/osbuild/rootfs-composer/internal/pipeline"
	"github.com/osbuild/rootfs-composer/internal/target"
)

// runOptions are the flags shared by fetch and build.
type runOptions struct {
	versions      []string
	arches        []string
	stopOnFailure bool
	report        string
}

func (o *runOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&o.versions, "version", nil, "only process this release (repeatable)")
	flags.StringSliceVar(&o.arches, "arch", nil, "only process this architecture (repeatable)")
	flags.BoolVar(&o.stopOnFailure, "stop-on-failure", false, "skip the remaining targets after the first failure")
	flags.StringVar(&o.report, "report", "", "write the run report to this file (.json, .yaml or .yml)")
}

// selectTargets builds the configured matrix for os and applies the
// command line filters.
func selectTargets(os target.OS, versions, arches []string, o *runOptions) ([]target.Target, error) {
	releases := make([]target.Release, 0, len(versions))
	for _, v := range versions {
		r, err := target.ReleaseFor(os, v)
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}

	targets := target.Filter(target.Matrix(os, releases, arches), o.versions, o.arches)
	if len(targets) == 0 {
		return nil, fmt.Errorf("no %s target matches the given filters", os)
	}
	return targets, nil
}

func (c *composer) httpClient() *fetch.Client {
	return fetch.NewClient(fetch.Options{
		RetryMax:     c.config.HTTP.RetryMax,
		RetryWaitMin: c.config.HTTP.RetryWaitMin,
		RetryWaitMax: c.config.HTTP.RetryWaitMax,
		Timeout:      c.config.HTTP.Timeout,
		Logger:       logrus.StandardLogger(),
	})
}

func newFetchCmd(c *composer) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the Alpine minirootfs archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Fetch
			targets, err := selectTargets(target.OSAlpine, cfg.Versions, cfg.Architectures, opts)
			if err != nil {
				return err
			}

			layout := target.Layout{Root: filepath.Join(c.config.Output, string(target.OSAlpine))}
			fetcher, err := alpine.NewFetcher(c.httpClient(), layout, cfg.URLTemplate)
			if err != nil {
				return err
			}

			report := pipeline.Run(cmd.Context(), pipeline.Options{
				Name:   "fetch",
				Policy: c.policy(opts.stopOnFailure || cfg.StopOnFailure),
				Logger: logrus.StandardLogger(),
				RunID:  c.runID,
			}, targets, fetcher.Fetch)
			return c.finish(report, opts.report)
		},
	}
	opts.register(cmd)
	return cmd
}
