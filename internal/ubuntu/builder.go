// Package ubuntu builds Ubuntu root filesystems with a two stage
// debootstrap, emulating foreign architectures with qemu-user.
package ubuntu

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/archive"
	"github.com/osbuild/rootfs-composer/internal/binfmt"
	"github.com/osbuild/rootfs-composer/internal/checksum"
	"github.com/osbuild/rootfs-composer/internal/cleanup"
	"github.com/osbuild/rootfs-composer/internal/mount"
	"github.com/osbuild/rootfs-composer/internal/pipeline"
	"github.com/osbuild/rootfs-composer/internal/prometheus"
	"github.com/osbuild/rootfs-composer/internal/runner"
	"github.com/osbuild/rootfs-composer/internal/target"
)

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Downloader fetches the optional preload library.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Dependencies are the host facing collaborators of a Builder.
type Dependencies struct {
	Runner     runner.Runner
	Mounts     *mount.Manager
	Binfmt     *binfmt.Registrar
	Downloader Downloader
	// Host is the architecture of the build host.
	Host arch.Arch
}

type Builder struct {
	cfg      Config
	layout   target.Layout
	runner   runner.Runner
	mounts   *mount.Manager
	binfmt   *binfmt.Registrar
	download Downloader
	host     arch.Arch
	strip    *stripper
}

// NewBuilder returns a Builder writing below layout, which must point at
// <output>/ubuntu.
func NewBuilder(cfg Config, layout target.Layout, deps Dependencies) (*Builder, error) {
	cfg.setDefaults()
	s, err := newStripper(cfg.Strip)
	if err != nil {
		return nil, err
	}
	if cfg.Preload.Enabled && (cfg.Preload.URL == "" || cfg.Preload.Path == "") {
		return nil, fmt.Errorf("preload needs both url and path")
	}
	return &Builder{
		cfg:      cfg,
		layout:   layout,
		runner:   deps.Runner,
		mounts:   deps.Mounts,
		binfmt:   deps.Binfmt,
		download: deps.Downloader,
		host:     deps.Host,
		strip:    s,
	}, nil
}

func (b *Builder) step(logger logrus.FieldLogger, name string, fn func() error) error {
	started := time.Now()
	logger.Infof("Running step %s", name)
	err := fn()
	prometheus.ObserveStep("build", name, started)
	if err != nil {
		return err
	}
	logger.Debugf("Step %s done in %s", name, time.Since(started).Round(time.Millisecond))
	return nil
}

// Build produces the archive and checksum of t. It has the signature of
// pipeline.Func; host state it changes is released through stack.
func (b *Builder) Build(ctx context.Context, logger logrus.FieldLogger, stack *cleanup.Stack, t target.Target) (*pipeline.Product, error) {
	a, err := t.Arch()
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorUnsupportedArchitecture, "cannot resolve architecture", err)
	}
	if t.Release.Codename == "" {
		return nil, pipeline.NewError(pipeline.ErrorInvalidRelease, fmt.Sprintf("release %s has no codename", t.Release.Version), nil)
	}
	foreign := !a.RunsOn(b.host)
	root := b.layout.WorkingRoot(t)

	if err := b.step(logger, "tools", func() error { return b.ensureTools(ctx, logger, a, foreign) }); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorToolMissing, "host tools unavailable", err)
	}

	if foreign {
		release, err := b.binfmt.Enable(ctx, a)
		stack.Push("disable emulation "+a.BinfmtEntry(), release)
		if err != nil {
			return nil, pipeline.NewError(pipeline.ErrorEmulation, "cannot enable emulation", err)
		}
	}

	if err := b.resetRoot(root); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorBootstrapStage1, "cannot prepare working root", err)
	}
	if b.cfg.RemoveFailedRoot {
		stack.Push("remove working root", func() error { return b.resetRootOnly(root) })
	} else {
		stack.Push("unmount working root", func() error { return b.mounts.UnmountAll(root) })
	}

	if err := b.step(logger, "bootstrap-stage1", func() error { return b.stage1(ctx, t, a, root) }); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorBootstrapStage1, "debootstrap first stage failed", err)
	}

	if foreign {
		if err := b.installQemu(a, root); err != nil {
			return nil, pipeline.NewError(pipeline.ErrorEmulation, "cannot install qemu binary", err)
		}
	}

	err = b.step(logger, "bootstrap-stage2", func() error {
		return b.mounts.WithChroot(ctx, root, func(ctx context.Context) error {
			_, err := b.runner.Run(ctx, runner.Chroot(root, runner.NewCommand("/debootstrap/debootstrap", "--second-stage")))
			return err
		})
	})
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorBootstrapStage2, "debootstrap second stage failed", err)
	}

	if err := b.step(logger, "configure", func() error { return b.configure(root, t, a) }); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorConfigure, "cannot write configuration", err)
	}

	if b.cfg.Preload.Enabled {
		if err := b.step(logger, "preload", func() error { return b.installPreload(ctx, logger, root) }); err != nil {
			return nil, pipeline.NewError(pipeline.ErrorConfigure, "cannot install preload library", err)
		}
	}

	if err := b.step(logger, "packages", func() error { return b.updatePackages(ctx, root) }); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorPackageUpdate, "package update failed", err)
	}

	return b.finalize(ctx, logger, t, a, root, foreign)
}

// resetRoot removes a working root left behind by an earlier run and
// creates an empty one.
func (b *Builder) resetRoot(root string) error {
	if err := b.resetRootOnly(root); err != nil {
		return err
	}
	return os.MkdirAll(root, 0755)
}

// resetRootOnly unmounts leftovers before deleting, so nothing is removed
// through a bind mount.
func (b *Builder) resetRootOnly(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	if err := b.mounts.UnmountAll(root); err != nil {
		return err
	}
	return os.RemoveAll(root)
}

func (b *Builder) stage1(ctx context.Context, t target.Target, a arch.Arch, root string) error {
	args := []string{
		"--foreign",
		"--arch=" + a.Name(arch.SchemeDebootstrap),
		"--variant=" + b.cfg.Variant,
	}
	if len(b.cfg.Include) > 0 {
		args = append(args, "--include="+strings.Join(b.cfg.Include, ","))
	}
	args = append(args, t.Release.Codename, root, b.mirrorFor(a))
	_, err := b.runner.Run(ctx, runner.NewCommand("debootstrap", args...))
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, fi.Mode().Perm())
}

func (b *Builder) qemuPath(root string, a arch.Arch) string {
	return filepath.Join(root, "usr", "bin", a.QemuBinary())
}

func (b *Builder) installQemu(a arch.Arch, root string) error {
	return copyFile(filepath.Join(b.cfg.QemuDir, a.QemuBinary()), b.qemuPath(root, a))
}

func (b *Builder) updatePackages(ctx context.Context, root string) error {
	return b.mounts.WithChroot(ctx, root, func(ctx context.Context) error {
		var cmds []*runner.Command
		if _, err := os.Stat(filepath.Join(root, "usr", "sbin", "locale-gen")); err == nil {
			cmds = append(cmds, runner.NewCommand("locale-gen"))
		}
		cmds = append(cmds,
			runner.NewCommand("apt-get", "update"),
			runner.NewCommand("apt-get", "-y", "upgrade"),
			runner.NewCommand("apt-get", "-y", "autoremove"),
			runner.NewCommand("apt-get", "clean"),
		)
		for _, cmd := range cmds {
			cmd.Env = aptEnv
			if _, err := b.runner.Run(ctx, runner.Chroot(root, cmd)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Builder) finalize(ctx context.Context, logger logrus.FieldLogger, t target.Target, a arch.Arch, root string, foreign bool) (*pipeline.Product, error) {
	err := b.step(logger, "strip", func() error {
		n, err := b.strip.strip(root, logger)
		if err != nil {
			return err
		}
		logger.Infof("Stripped %d files", n)
		if foreign {
			if err := os.Remove(b.qemuPath(root, a)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorFinalize, "cannot strip working root", err)
	}

	dest := b.layout.ArchivePath(t)
	if err := os.Remove(checksum.PathFor(dest)); err != nil && !os.IsNotExist(err) {
		return nil, pipeline.NewError(pipeline.ErrorFinalize, "cannot remove stale checksum", err)
	}

	var stats *archive.Stats
	err = b.step(logger, "archive", func() error {
		var err error
		stats, err = archive.Create(ctx, root, dest, archive.Options{
			Level:       b.cfg.CompressionLevel,
			Concurrency: b.cfg.CompressionConcurrency,
			Logger:      logger,
		})
		return err
	})
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorArchive, "cannot create archive", err)
	}

	sum, err := checksum.Write(dest)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrorChecksum, "cannot write checksum", err)
	}
	logger.Infof("Stored %s (%d entries, md5 %s)", dest, stats.Entries, sum)

	if err := b.resetRootOnly(root); err != nil {
		return nil, pipeline.NewError(pipeline.ErrorFinalize, "cannot remove working root", err)
	}

	return &pipeline.Product{Archive: dest, Checksum: sum, Size: stats.Size}, nil
}
