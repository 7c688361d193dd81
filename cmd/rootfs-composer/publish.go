package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/index"
	"github.com/osbuild/rootfs-composer/internal/publish"
)

// newUploader connects to the configured storage backend.
var newUploader = func(ctx context.Context, cfg *publishConfig) (publish.Uploader, error) {
	switch cfg.Backend {
	case "s3":
		return publish.NewS3(ctx, cfg.S3.config())
	case "minio":
		m, err := publish.NewMinIO(cfg.MinIO.config())
		if err != nil {
			return nil, err
		}
		if err := m.Prepare(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown publish backend %q", cfg.Backend)
}

func newPublishCmd(c *composer) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload archives, checksum files and the index to a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Publish
			if cfg == nil {
				return errors.New("no [publish] section in the configuration")
			}
			if !cmd.Flags().Changed("prefix") {
				prefix = cfg.Prefix
			}

			artifacts, err := scanAll(c.config.Output)
			if err != nil {
				return err
			}

			indexPath := ""
			if cfg.IncludeIndex {
				indexPath = filepath.Join(c.config.Output, index.Filename)
				if _, err := os.Stat(indexPath); err != nil {
					return fmt.Errorf("index not found, run the index command first: %w", err)
				}
			}

			objects := publish.Objects(prefix, artifacts, indexPath)
			if len(objects) == 0 {
				logrus.Warnf("Nothing to publish below %s", c.config.Output)
				return nil
			}

			uploader, err := newUploader(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("cannot connect to %s: %w", cfg.Backend, err)
			}

			err = publish.Publish(cmd.Context(), uploader, objects, publish.Options{
				Concurrency: cfg.Concurrency,
				Logger:      logrus.StandardLogger(),
			})
			c.writeMetrics()
			if err != nil {
				return err
			}
			logrus.Infof("Published %d objects to %s", len(objects), uploader.Backend())
			fmt.Fprintf(c.stdout, "%d objects published\n", len(objects))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix, overrides the configured one")
	return cmd
}
