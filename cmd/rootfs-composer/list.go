package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/target"
)

func newListCmd(c *composer) *cobra.Command {
	opts := &runOptions{}
	var osFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the configured targets and where their archives go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type matrix struct {
				os       target.OS
				versions []string
				arches   []string
				scheme   arch.Scheme
			}
			matrices := []matrix{
				{target.OSAlpine, c.config.Fetch.Versions, c.config.Fetch.Architectures, arch.SchemeAlpine},
				{target.OSUbuntu, c.config.Build.Versions, c.config.Build.Architectures, arch.SchemeDebootstrap},
			}

			w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TARGET\tRELEASE\tARCH\tARCHIVE")
			listed := 0
			for _, m := range matrices {
				if osFilter != "" && osFilter != string(m.os) {
					continue
				}
				targets := target.Filter(target.Matrix(m.os, releases(m.os, m.versions), m.arches), opts.versions, opts.arches)
				layout := target.Layout{Root: filepath.Join(c.config.Output, string(m.os))}
				for _, t := range targets {
					name, err := arch.ResolveName(t.ArchToken, m.scheme)
					if err != nil {
						name = "unsupported"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t, t.Release.DisplayName(), name, layout.ArchivePath(t))
					listed++
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if listed == 0 {
				return fmt.Errorf("no target matches the given filters")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.versions, "version", nil, "only list this release (repeatable)")
	cmd.Flags().StringSliceVar(&opts.arches, "arch", nil, "only list this architecture (repeatable)")
	cmd.Flags().StringVar(&osFilter, "os", "", "only list targets of this OS (alpine or ubuntu)")
	return cmd
}

// releases resolves versions, validated when the config was loaded.
func releases(os target.OS, versions []string) []target.Release {
	out := make([]target.Release, 0, len(versions))
	for _, v := range versions {
		if r, err := target.ReleaseFor(os, v); err == nil {
			out = append(out, r)
		}
	}
	return out
}
