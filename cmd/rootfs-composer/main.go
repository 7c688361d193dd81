package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/rootfs-composer/internal/common"
	"github.com/osbuild/rootfs-composer/internal/pipeline"
	"github.com/osbuild/rootfs-composer/internal/prometheus"
)

// composer carries the state shared by every subcommand once the root
// command has loaded the configuration.
type composer struct {
	configPath string
	output     string
	json       bool
	journal    bool
	verbose    bool

	config *composerConfig
	runID  string
	stdout io.Writer
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	c := &composer{stdout: stdout}

	cmd := &cobra.Command{
		Use:           "rootfs-composer",
		Short:         "Fetch, build and publish minimal Linux root filesystem archives",
		Version:       common.VersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	cmd.SetOut(stdout)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", configFile, "configuration file")
	flags.StringVar(&c.output, "output", "", "output root, overrides the configured one")
	flags.BoolVar(&c.json, "json", false, "log in JSON format")
	flags.BoolVar(&c.journal, "journal", false, "also log to the systemd journal")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newFetchCmd(c),
		newBuildCmd(c),
		newVerifyCmd(c),
		newIndexCmd(c),
		newPublishCmd(c),
		newListCmd(c),
	)
	return cmd
}

func (c *composer) setup() error {
	c.setupLogging()

	config, err := parseConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config file '%s': %w", c.configPath, err)
	}
	if c.output != "" {
		config.Output = c.output
	}
	output, err := filepath.Abs(config.Output)
	if err != nil {
		return fmt.Errorf("invalid output directory '%s': %w", config.Output, err)
	}
	config.Output = output
	c.config = config

	logrus.Info("Composer configuration:")
	w := logrus.StandardLogger().WriterLevel(logrus.InfoLevel)
	defer w.Close()
	encoder := toml.NewEncoder(w)
	if err := encoder.Encode(config.redacted()); err != nil {
		return fmt.Errorf("could not print config: %w", err)
	}
	return nil
}

func (c *composer) setupLogging() {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	if c.json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	runHook := common.NewRunHook()
	c.runID = runHook.RunID

	hooks := make(logrus.LevelHooks)
	hooks.Add(&common.BuildHook{})
	hooks.Add(runHook)
	if c.journal {
		if common.JournalAvailable() {
			hooks.Add(&common.JournalHook{Identifier: "rootfs-composer"})
		} else {
			logger.Warn("systemd journal is not available, logging to stderr only")
		}
	}
	logger.ReplaceHooks(hooks)
}

func (c *composer) policy(stopOnFailure bool) pipeline.Policy {
	if stopOnFailure {
		return pipeline.StopOnFailure
	}
	return pipeline.ContinueOnFailure
}

// finish prints the report, stores it and the metrics when asked to, and
// turns a failed run into an error.
func (c *composer) finish(report *pipeline.Report, reportPath string) error {
	if err := report.WriteTable(c.stdout); err != nil {
		return err
	}
	if reportPath != "" {
		if err := report.WriteFile(reportPath); err != nil {
			return err
		}
		logrus.Infof("Report written to %s", reportPath)
	}
	c.writeMetrics()

	if !report.OK() {
		return fmt.Errorf("%s", report.Summary())
	}
	logrus.Info(report.Summary())
	return nil
}

// writeMetrics only warns on failure.
func (c *composer) writeMetrics() {
	if c.config.MetricsTextfile == "" {
		return
	}
	if err := prometheus.WriteTextfile(c.config.MetricsTextfile); err != nil {
		logrus.Warnf("Cannot write metrics to %s: %v", c.config.MetricsTextfile, err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		logrus.Error(err)
		stop()
		os.Exit(1)
	}
}
