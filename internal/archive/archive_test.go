package archive_test

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/rootfs-composer/internal/archive"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc/apt"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc/hostname"), []byte("localhost\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr/bin/busybox"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.Link(filepath.Join(root, "usr/bin/busybox"), filepath.Join(root, "usr/bin/sh")))
	require.NoError(t, os.Symlink("usr/bin", filepath.Join(root, "bin")))
	return root
}

func readEntries(t *testing.T, path string) map[string]*tar.Header {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string]*tar.Header)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		entries[hdr.Name] = hdr
	}
	return entries
}

func TestCreate(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	src := makeTree(t)
	dest := filepath.Join(t.TempDir(), "rootfs.tar.gz")

	stats, err := archive.Create(context.Background(), src, dest, archive.Options{Logger: logger, Concurrency: 2})
	require.NoError(t, err)
	assert.Greater(t, stats.Size, int64(0))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, stats.Size, info.Size())
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries := readEntries(t, dest)
	assert.Equal(t, stats.Entries, len(entries))

	for name, hdr := range entries {
		assert.Regexp(t, `^\./`, name)
		assert.Empty(t, hdr.Uname, name)
		assert.Empty(t, hdr.Gname, name)
		assert.Equal(t, os.Getuid(), hdr.Uid, name)
	}

	require.Contains(t, entries, "./")
	require.Contains(t, entries, "./etc/")
	assert.Equal(t, byte(tar.TypeDir), entries["./etc/"].Typeflag)

	hostname := entries["./etc/hostname"]
	require.NotNil(t, hostname)
	assert.Equal(t, int64(len("localhost\n")), hostname.Size)

	bin := entries["./bin"]
	require.NotNil(t, bin)
	assert.Equal(t, byte(tar.TypeSymlink), bin.Typeflag)
	assert.Equal(t, "usr/bin", bin.Linkname)

	// WalkDir visits busybox before sh
	sh := entries["./usr/bin/sh"]
	require.NotNil(t, sh)
	assert.Equal(t, byte(tar.TypeLink), sh.Typeflag)
	assert.Equal(t, "./usr/bin/busybox", sh.Linkname)
}

func TestCreateCancelled(t *testing.T) {
	src := makeTree(t)
	dest := filepath.Join(t.TempDir(), "rootfs.tar.gz")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := archive.Create(ctx, src, dest, archive.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}

func TestCreateMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "rootfs.tar.gz")
	_, err := archive.Create(context.Background(), filepath.Join(t.TempDir(), "missing"), dest, archive.Options{})
	assert.Error(t, err)
	assert.NoFileExists(t, dest)
}
