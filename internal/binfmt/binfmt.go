// Package binfmt enables the qemu-user binfmt_misc handlers needed to
// execute foreign architecture binaries inside a working root.
//
// The registration is host-wide state. Enable hands back a release
// function that must run on every exit path; when the handler was
// already enabled before, the release leaves it alone.
package binfmt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/runner"
)

// DefaultDir is the binfmt_misc mount point.
const DefaultDir = "/proc/sys/fs/binfmt_misc"

type Registrar struct {
	runner runner.Runner
	dir    string
	logger logrus.FieldLogger
}

func NewRegistrar(r runner.Runner, dir string, logger logrus.FieldLogger) *Registrar {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registrar{runner: r, dir: dir, logger: logger}
}

// Enabled reports whether the handler for a is registered and enabled.
func (r *Registrar) Enabled(a arch.Arch) (bool, error) {
	f, err := os.Open(filepath.Join(r.dir, a.BinfmtEntry()))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot read binfmt entry: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "enabled", nil
	}
	return false, scanner.Err()
}

// Enable registers the handler for a. The returned release function is
// never nil.
func (r *Registrar) Enable(ctx context.Context, a arch.Arch) (func() error, error) {
	noop := func() error { return nil }
	entry := a.BinfmtEntry()

	enabled, err := r.Enabled(a)
	if err != nil {
		return noop, err
	}
	if enabled {
		r.logger.Infof("Emulation for %s already enabled", entry)
		return noop, nil
	}

	r.logger.Infof("Enabling emulation for %s", entry)
	if _, err := r.runner.Run(ctx, runner.NewCommand("update-binfmts", "--enable", entry)); err != nil {
		return noop, fmt.Errorf("cannot enable %s: %w", entry, err)
	}

	release := func() error {
		r.logger.Infof("Disabling emulation for %s", entry)
		// the registration must be undone even when ctx was cancelled
		_, err := r.runner.Run(context.Background(), runner.NewCommand("update-binfmts", "--disable", entry))
		if err != nil {
			return fmt.Errorf("cannot disable %s: %w", entry, err)
		}
		return nil
	}
	return release, nil
}
