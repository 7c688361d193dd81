package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/artifact"
	"github.com/osbuild/rootfs-composer/internal/checksum"
	"github.com/osbuild/rootfs-composer/internal/index"
)

// scanAll lists the artifacts of every known OS below output.
func scanAll(output string) ([]artifact.Artifact, error) {
	var all []artifact.Artifact
	for _, osName := range index.OperatingSystems {
		found, err := artifact.Scan(output, osName)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

func newVerifyCmd(c *composer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every archive against its checksum file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := scanAll(c.config.Output)
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				logrus.Warnf("No archives found below %s", c.config.Output)
				return nil
			}

			failed := 0
			for _, a := range artifacts {
				if err := checksum.Verify(a.Path); err != nil {
					failed++
					logrus.WithField("archive", a.Path).Errorf("Verification failed: %v", err)
					fmt.Fprintf(c.stdout, "FAILED  %s: %v\n", a.RelPath(), err)
					continue
				}
				fmt.Fprintf(c.stdout, "OK      %s\n", a.RelPath())
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed verification", failed, len(artifacts))
			}
			logrus.Infof("All %d archives verified", len(artifacts))
			return nil
		},
	}
}
