// Package alpine fetches the prebuilt Alpine minimal root filesystems
// published on the Alpine mirrors.
package alpine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/checksum"
	"github.com/osbuild/rootfs-composer/internal/cleanup"
	"github.com/osbuild/rootfs-composer/internal/fetch"
	"github.com/osbuild/rootfs-composer/internal/pipeline"
	"github.com/osbuild/rootfs-composer/internal/prometheus"
	"github.com/osbuild/rootfs-composer/internal/target"
)

const DefaultURLTemplate = "https://dl-cdn.alpinelinux.org/alpine/v{{.Branch}}/releases/{{.Arch}}/alpine-minirootfs-{{.Version}}-{{.Arch}}.tar.gz"

// URLData is what the URL template is executed with.
type URLData struct {
	Version string
	Branch  string
	// Arch is the Alpine name, e.g. x86_64.
	Arch string
	// Token is the canonical name, e.g. amd64.
	Token string
}

// Downloader is satisfied by *fetch.Client.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

type Fetcher struct {
	downloader Downloader
	layout     target.Layout
	url        *template.Template
}

// NewFetcher parses urlTemplate, DefaultURLTemplate when empty. layout
// must point at <output>/alpine.
func NewFetcher(d Downloader, layout target.Layout, urlTemplate string) (*Fetcher, error) {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	tmpl, err := template.New("url").Option("missingkey=error").Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid url template: %w", err)
	}
	return &Fetcher{downloader: d, layout: layout, url: tmpl}, nil
}

// URL computes the download location of t.
func (f *Fetcher) URL(t target.Target) (string, error) {
	name, err := arch.ResolveName(t.ArchToken, arch.SchemeAlpine)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	err = f.url.Execute(&sb, URLData{
		Version: t.Release.Version,
		Branch:  t.Release.Branch(),
		Arch:    name,
		Token:   t.ArchToken,
	})
	if err != nil {
		return "", fmt.Errorf("cannot render url: %w", err)
	}
	return sb.String(), nil
}

// Fetch downloads the archive of t and writes its checksum file. It has
// the signature of pipeline.Func.
func (f *Fetcher) Fetch(ctx context.Context, logger logrus.FieldLogger, _ *cleanup.Stack, t target.Target) (*pipeline.Product, error) {
	u, err := f.URL(t)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorUnsupportedArchitecture, "cannot resolve download url", err)
	}

	if err := fetch.EnsureDir(f.layout.Dir(t)); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorFetch, "cannot create output directory", err)
	}

	dest := f.layout.ArchivePath(t)
	// a stale checksum must not survive next to a new archive
	if err := os.Remove(checksum.PathFor(dest)); err != nil && !os.IsNotExist(err) {
		return nil, pipeline.NewError(pipeline.ErrorFetch, "cannot remove stale checksum", err)
	}

	started := time.Now()
	logger.WithField("url", u).Info("Fetching root filesystem")
	size, err := f.downloader.Download(ctx, u, dest)
	prometheus.ObserveStep("fetch", "download", started)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorFetch, "download failed", err)
	}

	sum, err := checksum.Write(dest)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorChecksum, "cannot write checksum", err)
	}
	logger.Infof("Stored %s (md5 %s)", dest, sum)

	return &pipeline.Product{Archive: dest, Checksum: sum, Size: size}, nil
}

var _ Downloader = (*fetch.Client)(nil)
