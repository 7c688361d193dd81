package ubuntu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/checksum"
)

const preloadList = "etc/ld.so.preload"

// installPreload downloads the configured library into the root and
// lists it in /etc/ld.so.preload.
func (b *Builder) installPreload(ctx context.Context, logger logrus.FieldLogger, root string) error {
	p := b.cfg.Preload
	if b.download == nil {
		return fmt.Errorf("no downloader configured")
	}
	dest := filepath.Join(root, strings.TrimPrefix(filepath.Clean("/"+p.Path), "/"))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	logger.WithField("url", p.URL).Warn("Installing preload library from a third party")
	if _, err := b.download.Download(ctx, p.URL, dest); err != nil {
		return err
	}

	if p.MD5 != "" {
		sum, err := checksum.Sum(dest)
		if err != nil {
			return err
		}
		if !strings.EqualFold(sum, p.MD5) {
			_ = os.Remove(dest)
			return fmt.Errorf("%w: preload library has %s, expected %s", checksum.ErrMismatch, sum, p.MD5)
		}
	}

	listPath := filepath.Join(root, preloadList)
	existing, err := os.ReadFile(listPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	entry := filepath.Clean("/" + p.Path)
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		existing = append(existing, '\n')
	}
	return writeFile(root, preloadList, append(existing, entry+"\n"...))
}
