package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/alpine"
	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/publish"
	"github.com/osbuild/rootfs-composer/internal/target"
	"github.com/osbuild/rootfs-composer/internal/ubuntu"
)

const configFile = "/etc/rootfs-composer/rootfs-composer.toml"

type httpConfig struct {
	RetryMax     int           `toml:"retry_max"`
	RetryWaitMin time.Duration `toml:"retry_wait_min"`
	RetryWaitMax time.Duration `toml:"retry_wait_max"`
	Timeout      time.Duration `toml:"timeout"`
}

type fetchConfig struct {
	Versions      []string `toml:"versions"`
	Architectures []string `toml:"architectures"`
	URLTemplate   string   `toml:"url_template"`
	StopOnFailure bool     `toml:"stop_on_failure"`
}

type preloadConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Path    string `toml:"path"`
	MD5     string `toml:"md5"`
}

type buildConfig struct {
	Versions               []string       `toml:"versions"`
	Architectures          []string       `toml:"architectures"`
	StopOnFailure          bool           `toml:"stop_on_failure"`
	RemoveFailedRoot       bool           `toml:"remove_failed_root"`
	Variant                string         `toml:"variant"`
	Include                []string       `toml:"include"`
	Mirror                 string         `toml:"mirror"`
	PortsMirror            string         `toml:"ports_mirror"`
	Locale                 string         `toml:"locale"`
	InstallMissingTools    bool           `toml:"install_missing_tools"`
	QemuDir                string         `toml:"qemu_dir"`
	Strip                  []string       `toml:"strip"`
	CompressionLevel       int            `toml:"compression_level"`
	CompressionConcurrency int            `toml:"compression_concurrency"`
	Preload                *preloadConfig `toml:"preload,omitempty"`
}

type indexConfig struct {
	// BaseURL prefixes every download_url, relative paths are written
	// when empty.
	BaseURL string `toml:"base_url"`
}

type s3Config struct {
	Bucket              string `toml:"bucket"`
	Region              string `toml:"region"`
	Endpoint            string `toml:"endpoint"`
	AccessKeyID         string `toml:"access_key_id"`
	SecretAccessKey     string `toml:"secret_access_key"`
	Credentials         string `toml:"credentials"`
	CABundle            string `toml:"ca_bundle"`
	SkipSSLVerification bool   `toml:"skip_ssl_verification"`
	Public              bool   `toml:"public"`
}

type minioConfig struct {
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	Region       string `toml:"region"`
	UseSSL       bool   `toml:"use_ssl"`
	Bucket       string `toml:"bucket"`
	CreateBucket bool   `toml:"create_bucket"`
}

type publishConfig struct {
	// Backend is "s3" or "minio".
	Backend      string       `toml:"backend"`
	Prefix       string       `toml:"prefix"`
	Concurrency  int          `toml:"concurrency"`
	IncludeIndex bool         `toml:"include_index"`
	S3           *s3Config    `toml:"s3,omitempty"`
	MinIO        *minioConfig `toml:"minio,omitempty"`
}

type composerConfig struct {
	Output string `toml:"output"`
	// MetricsTextfile is written after every run when set, for the node
	// exporter textfile collector.
	MetricsTextfile string         `toml:"metrics_textfile"`
	HTTP            *httpConfig    `toml:"http"`
	Fetch           *fetchConfig   `toml:"fetch"`
	Build           *buildConfig   `toml:"build"`
	Index           *indexConfig   `toml:"index"`
	Publish         *publishConfig `toml:"publish,omitempty"`
}

func defaultConfig() composerConfig {
	return composerConfig{
		Output: "/var/lib/rootfs-composer",
		HTTP: &httpConfig{
			RetryMax:     4,
			RetryWaitMin: time.Second,
			RetryWaitMax: 30 * time.Second,
			Timeout:      30 * time.Minute,
		},
		Fetch: &fetchConfig{
			Versions:      []string{"3.18.9", "3.19.4", "3.20.3", "3.21.0"},
			Architectures: []string{"amd64", "arm64", "armhf", "i386"},
			URLTemplate:   alpine.DefaultURLTemplate,
		},
		Build: &buildConfig{
			Versions:      []string{"14.04", "16.04", "18.04", "20.04", "22.04", "24.04"},
			Architectures: []string{"amd64", "arm64", "armhf", "i386"},
			Variant:       ubuntu.DefaultVariant,
			Mirror:        ubuntu.DefaultMirror,
			PortsMirror:   ubuntu.DefaultPortsMirror,
			Locale:        ubuntu.DefaultLocale,
			QemuDir:       ubuntu.DefaultQemuDir,
			Strip:         append([]string(nil), ubuntu.DefaultStrip...),
		},
		Index: &indexConfig{},
	}
}

func parseConfig(file string) (*composerConfig, error) {
	// set defaults
	config := defaultConfig()

	_, err := toml.DecodeFile(file, &config)
	if err != nil {
		// Return error only when we failed to decode the file.
		// A non-existing config isn't an error, use defaults in this case.
		if !os.IsNotExist(err) {
			return nil, err
		}

		logrus.Info("Configuration file not found, using defaults")
	}

	if config.Publish != nil {
		if config.Publish.Concurrency == 0 {
			config.Publish.Concurrency = publish.DefaultConcurrency
		} else if config.Publish.Concurrency < 0 {
			return nil, fmt.Errorf("invalid publish concurrency: %d", config.Publish.Concurrency)
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *composerConfig) validate() error {
	if c.Output == "" {
		return errors.New("output directory is required")
	}
	for _, v := range c.Fetch.Versions {
		if _, err := target.AlpineRelease(v); err != nil {
			return err
		}
	}
	for _, v := range c.Build.Versions {
		if _, err := target.UbuntuRelease(v); err != nil {
			return err
		}
	}

	// unsupported architectures fail their targets, they do not stop the
	// whole run
	for _, list := range [][]string{c.Fetch.Architectures, c.Build.Architectures} {
		for _, token := range list {
			if _, err := arch.Parse(token); err != nil {
				logrus.Warnf("Configured architecture %q is not supported, its targets will fail", token)
			}
		}
	}

	if c.Build.Preload != nil && c.Build.Preload.Enabled && (c.Build.Preload.URL == "" || c.Build.Preload.Path == "") {
		return errors.New("build.preload needs url and path when enabled")
	}

	if c.Publish != nil {
		switch c.Publish.Backend {
		case "s3":
			if c.Publish.S3 == nil || c.Publish.S3.Bucket == "" {
				return errors.New("publish.s3.bucket is required for the s3 backend")
			}
		case "minio":
			if c.Publish.MinIO == nil {
				return errors.New("publish.minio section is required for the minio backend")
			}
			if err := c.Publish.MinIO.config().Validate(); err != nil {
				return fmt.Errorf("publish.minio: %w", err)
			}
		default:
			return fmt.Errorf("publish backend needs to be s3 or minio. Got: %s", c.Publish.Backend)
		}
	}
	return nil
}

// redacted returns a copy safe for logging.
func (c composerConfig) redacted() composerConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return strings.Repeat("*", 8)
	}
	if c.Publish != nil {
		p := *c.Publish
		if p.S3 != nil {
			s3 := *p.S3
			s3.SecretAccessKey = mask(s3.SecretAccessKey)
			p.S3 = &s3
		}
		if p.MinIO != nil {
			m := *p.MinIO
			m.SecretKey = mask(m.SecretKey)
			p.MinIO = &m
		}
		c.Publish = &p
	}
	return c
}

func (c *buildConfig) ubuntu() ubuntu.Config {
	cfg := ubuntu.Config{
		Variant:                c.Variant,
		Include:                c.Include,
		Mirror:                 c.Mirror,
		PortsMirror:            c.PortsMirror,
		Locale:                 c.Locale,
		InstallMissingTools:    c.InstallMissingTools,
		RemoveFailedRoot:       c.RemoveFailedRoot,
		QemuDir:                c.QemuDir,
		Strip:                  c.Strip,
		CompressionLevel:       c.CompressionLevel,
		CompressionConcurrency: c.CompressionConcurrency,
	}
	if c.Preload != nil {
		cfg.Preload = ubuntu.Preload{
			Enabled: c.Preload.Enabled,
			URL:     c.Preload.URL,
			Path:    c.Preload.Path,
			MD5:     c.Preload.MD5,
		}
	}
	return cfg
}

func (c *s3Config) config() publish.S3Config {
	return publish.S3Config{
		Bucket:              c.Bucket,
		Region:              c.Region,
		Endpoint:            c.Endpoint,
		AccessKeyID:         c.AccessKeyID,
		SecretAccessKey:     c.SecretAccessKey,
		CredentialsFile:     c.Credentials,
		CABundle:            c.CABundle,
		SkipSSLVerification: c.SkipSSLVerification,
		Public:              c.Public,
	}
}

func (c *minioConfig) config() publish.MinIOConfig {
	return publish.MinIOConfig{
		Endpoint:     c.Endpoint,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		Region:       c.Region,
		UseSSL:       c.UseSSL,
		Bucket:       c.Bucket,
		CreateBucket: c.CreateBucket,
	}
}
