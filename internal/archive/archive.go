// Package archive packages a root filesystem tree into a gzip compressed
// tarball.
//
// Entries are named relative to the tree ("./etc/passwd"), carry numeric
// ownership only, and keep symlinks, hard links, device nodes, fifos and
// file capabilities, so the tree can be unpacked as a root filesystem.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// xattrs copied into PAX records.
var xattrs = []string{"security.capability"}

type Options struct {
	// Level is the gzip compression level, 0 means default.
	Level int
	// Concurrency is the number of blocks compressed in parallel, 0
	// means pgzip's default.
	Concurrency int
	Logger      logrus.FieldLogger
}

type inode struct {
	dev uint64
	ino uint64
}

// Stats summarizes a created archive.
type Stats struct {
	Entries int
	Size    int64
}

// Create writes the tree below src into dest. dest is replaced
// atomically, a failed run leaves any previous file untouched.
func Create(ctx context.Context, src, dest string, opts Options) (*Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	level := opts.Level
	if level == 0 {
		level = pgzip.DefaultCompression
	}

	pending, err := renameio.TempFile("", dest)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", dest, err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	gz, err := pgzip.NewWriterLevel(pending, level)
	if err != nil {
		return nil, err
	}
	if opts.Concurrency > 0 {
		if err := gz.SetConcurrency(1<<20, opts.Concurrency); err != nil {
			return nil, err
		}
	}
	tw := tar.NewWriter(gz)

	stats := &Stats{}
	links := make(map[inode]string)
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := "./"
		if rel != "." {
			name += filepath.ToSlash(rel)
		}
		if err := addEntry(tw, path, name, links); err != nil {
			return fmt.Errorf("cannot archive %s: %w", name, err)
		}
		stats.Entries++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if err := pending.Chmod(0644); err != nil {
		return nil, err
	}
	info, err := pending.Stat()
	if err != nil {
		return nil, err
	}
	stats.Size = info.Size()
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, err
	}

	logger.Infof("Archived %d entries into %s (%d bytes)", stats.Entries, dest, stats.Size)
	return stats, nil
}

func addEntry(tw *tar.Writer, path, name string, links map[inode]string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	var linkTarget string
	if info.Mode()&os.ModeSymlink != 0 {
		if linkTarget, err = os.Readlink(path); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() && name != "./" {
		hdr.Name += "/"
	}
	hdr.Format = tar.FormatPAX
	// numeric ownership only
	hdr.Uname = ""
	hdr.Gname = ""

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		hdr.Uid = int(st.Uid)
		hdr.Gid = int(st.Gid)
		if info.Mode()&(os.ModeDevice|os.ModeCharDevice) != 0 {
			rdev := uint64(st.Rdev) // #nosec G115
			hdr.Devmajor = int64(unix.Major(rdev))
			hdr.Devminor = int64(unix.Minor(rdev))
		}
		if info.Mode().IsRegular() && st.Nlink > 1 {
			key := inode{dev: uint64(st.Dev), ino: uint64(st.Ino)} // #nosec G115
			if first, seen := links[key]; seen {
				hdr.Typeflag = tar.TypeLink
				hdr.Linkname = first
				hdr.Size = 0
			} else {
				links[key] = name
			}
		}
	}

	if err := addXattrs(hdr, path); err != nil {
		return err
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if hdr.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func addXattrs(hdr *tar.Header, path string) error {
	for _, attr := range xattrs {
		buf := make([]byte, 256)
		n, err := unix.Lgetxattr(path, attr, buf)
		if errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", attr, err)
		}
		if hdr.PAXRecords == nil {
			hdr.PAXRecords = make(map[string]string)
		}
		hdr.PAXRecords["SCHILY.xattr."+attr] = string(buf[:n])
	}
	return nil
}
