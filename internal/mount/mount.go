// Package mount bind-mounts host pseudo filesystems into a working root
// and tracks them so they are unwound again.
//
// Both directions are idempotent: mounting an already mounted target and
// unmounting a target that is not mounted are no-ops.
package mount

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/cleanup"
)

// Syscalls is the subset of mount(2)/umount(2) the manager needs.
type Syscalls interface {
	BindMount(source, target string) error
	Unmount(target string) error
}

// DefaultMountInfo is where the kernel publishes the mount table of the
// calling process.
const DefaultMountInfo = "/proc/self/mountinfo"

// ChrootMounts are bind-mounted, in order, before running anything
// inside a working root.
var ChrootMounts = []string{"/proc", "/sys", "/dev", "/dev/pts"}

type Manager struct {
	sys       Syscalls
	mountInfo string
	logger    logrus.FieldLogger
}

// NewManager returns a Manager using sys and reading the mount table
// from mountInfo.
func NewManager(sys Syscalls, mountInfo string, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{sys: sys, mountInfo: mountInfo, logger: logger}
}

// Resolve returns target the way the kernel lists it in mountinfo:
// absolute, with symlinks resolved. Trailing components that do not
// exist yet are appended unresolved.
func Resolve(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	var missing []string
	p := abs
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs, nil
		}
		missing = append([]string{filepath.Base(p)}, missing...)
		p = parent
	}
}

// IsMounted reports whether target is a mount point.
func (m *Manager) IsMounted(target string) (bool, error) {
	resolved, err := Resolve(target)
	if err != nil {
		return false, err
	}
	return m.isMounted(resolved)
}

func (m *Manager) isMounted(resolved string) (bool, error) {
	points, err := readMountPoints(m.mountInfo)
	if err != nil {
		return false, err
	}
	return points[resolved], nil
}

// Bind bind-mounts source onto target, creating target if needed. It
// returns false when target was already mounted.
func (m *Manager) Bind(source, target string) (bool, error) {
	resolved, err := Resolve(target)
	if err != nil {
		return false, fmt.Errorf("cannot resolve mount point %s: %w", target, err)
	}
	target = resolved
	mounted, err := m.isMounted(target)
	if err != nil {
		return false, err
	}
	if mounted {
		m.logger.Debugf("%s already mounted, skipping", target)
		return false, nil
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return false, fmt.Errorf("cannot create mount point %s: %w", target, err)
	}
	if err := m.sys.BindMount(source, target); err != nil {
		return false, fmt.Errorf("cannot bind mount %s on %s: %w", source, target, err)
	}
	m.logger.Debugf("Mounted %s on %s", source, target)
	return true, nil
}

// Unmount unmounts target unless it is not mounted.
func (m *Manager) Unmount(target string) error {
	resolved, err := Resolve(target)
	if err != nil {
		return fmt.Errorf("cannot resolve mount point %s: %w", target, err)
	}
	target = resolved
	mounted, err := m.isMounted(target)
	if err != nil {
		return err
	}
	if !mounted {
		m.logger.Debugf("%s not mounted, skipping", target)
		return nil
	}
	if err := m.sys.Unmount(target); err != nil {
		return fmt.Errorf("cannot unmount %s: %w", target, err)
	}
	m.logger.Debugf("Unmounted %s", target)
	return nil
}

// WithChroot bind-mounts ChrootMounts below root, runs fn and unmounts
// everything again in reverse order, whether fn succeeds or not.
func (m *Manager) WithChroot(ctx context.Context, root string, fn func(ctx context.Context) error) (err error) {
	stack := cleanup.NewStack(m.logger)
	defer func() {
		if releaseErr := stack.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	root, err = Resolve(root)
	if err != nil {
		return fmt.Errorf("cannot resolve working root: %w", err)
	}
	for _, src := range ChrootMounts {
		dst := filepath.Join(root, src)
		if _, err := m.Bind(src, dst); err != nil {
			return err
		}
		// unmounted even if it was mounted before the session started
		stack.Push("unmount "+dst, func() error { return m.Unmount(dst) })
	}

	return fn(ctx)
}

// UnmountAll unmounts whatever is left of ChrootMounts below root, for
// example after a previous run was killed.
func (m *Manager) UnmountAll(root string) error {
	root, err := Resolve(root)
	if err != nil {
		return fmt.Errorf("cannot resolve working root: %w", err)
	}
	var result *multierror.Error
	for i := len(ChrootMounts) - 1; i >= 0; i-- {
		if err := m.Unmount(filepath.Join(root, ChrootMounts[i])); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
