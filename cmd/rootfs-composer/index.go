package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/index"
)

func newIndexCmd(c *composer) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Write " + index.Filename + " describing every packaged archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("base-url") {
				baseURL = c.config.Index.BaseURL
			}

			idx, err := index.Generate(c.config.Output, baseURL, logrus.StandardLogger())
			if err != nil {
				return err
			}
			path := filepath.Join(c.config.Output, index.Filename)
			if err := idx.WriteFile(path); err != nil {
				return err
			}
			logrus.Infof("Index with %d distributions written to %s", len(idx.Distributions), path)
			fmt.Fprintln(c.stdout, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "prefix of every download_url, overrides the configured one")
	return cmd
}
