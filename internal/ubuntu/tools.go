package ubuntu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/runner"
)

// toolPackages maps host tools to the Debian packages shipping them.
var toolPackages = map[string]string{
	"debootstrap":    "debootstrap",
	"chroot":         "coreutils",
	"update-binfmts": "binfmt-support",
}

const qemuPackage = "qemu-user-static"

// missingTools returns the Debian packages providing the host tools a
// build of a still lacks. foreign adds the emulation tools.
func (b *Builder) missingTools(a arch.Arch, foreign bool) []string {
	needed := []string{"debootstrap", "chroot"}
	if foreign {
		needed = append(needed, "update-binfmts")
	}

	pkgs := map[string]bool{}
	for _, tool := range needed {
		if _, err := b.runner.LookPath(tool); err != nil {
			pkgs[toolPackages[tool]] = true
		}
	}
	if foreign {
		if _, err := os.Stat(filepath.Join(b.cfg.QemuDir, a.QemuBinary())); err != nil {
			pkgs[qemuPackage] = true
		}
	}

	out := make([]string, 0, len(pkgs))
	for p := range pkgs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (b *Builder) ensureTools(ctx context.Context, logger logrus.FieldLogger, a arch.Arch, foreign bool) error {
	missing := b.missingTools(a, foreign)
	if len(missing) == 0 {
		return nil
	}
	if !b.cfg.InstallMissingTools {
		return fmt.Errorf("missing host packages: %s", strings.Join(missing, ", "))
	}

	logger.Infof("Installing missing host packages: %s", strings.Join(missing, ", "))
	cmd := runner.NewCommand("apt-get", append([]string{"install", "-y"}, missing...)...)
	cmd.Env = aptEnv
	if _, err := b.runner.Run(ctx, cmd); err != nil {
		return err
	}

	if still := b.missingTools(a, foreign); len(still) > 0 {
		return fmt.Errorf("still missing after install: %s", strings.Join(still, ", "))
	}
	return nil
}
