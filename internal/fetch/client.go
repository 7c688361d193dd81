// Package fetch downloads remote files with retries and stores them
// atomically, so an interrupted or failed download never leaves a
// partial file at the destination.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	rh "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout bounds a single attempt, 0 disables it.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

type Client struct {
	client *rh.Client
	logger logrus.FieldLogger
}

func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := rh.NewClient()
	client.Logger = NewLeveledLogger(logger)
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	client.HTTPClient.Timeout = opts.Timeout

	return &Client{client: client, logger: logger}
}

func validateURL(u string) (*url.URL, error) {
	if u == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsedURL, err := url.ParseRequestURI(u)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %s", u)
	}
	return parsedURL, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	parsedURL, err := validateURL(u)
	if err != nil {
		return nil, err
	}
	req, err := rh.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", u, resp.Status)
	}
	return resp, nil
}

// Download retrieves u into dest and returns the number of bytes
// written. dest only appears once the whole body has been received.
func (c *Client) Download(ctx context.Context, u, dest string) (int64, error) {
	c.logger.Infof("Downloading %s", u)
	resp, err := c.get(ctx, u)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	pending, err := renameio.TempFile(filepath.Dir(dest), dest)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", dest, err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	n, err := io.Copy(pending, resp.Body)
	if err != nil {
		return n, fmt.Errorf("GET %s: reading body: %w", u, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("GET %s: short body, got %d of %d bytes", u, n, resp.ContentLength)
	}
	if err := pending.Chmod(0644); err != nil {
		return n, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, err
	}
	c.logger.Infof("Saved %s (%d bytes)", dest, n)
	return n, nil
}

// Resolve returns the contents of a remote file.
func (c *Client) Resolve(ctx context.Context, u string) ([]byte, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// EnsureDir creates dir and its parents. It is a no-op when dir already
// exists.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return nil
}
