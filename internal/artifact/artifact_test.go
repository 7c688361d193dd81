package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/rootfs-composer/internal/artifact"
	"github.com/osbuild/rootfs-composer/internal/checksum"
	"github.com/osbuild/rootfs-composer/internal/target"
)

func writeArtifact(t *testing.T, output, osName, version, arch, content string, withSum bool) string {
	t.Helper()
	dir := filepath.Join(output, osName, version, arch)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, osName+"-"+version+"-"+arch+"-rootfs.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	if withSum {
		_, err := checksum.Write(path)
		require.NoError(t, err)
	}
	return path
}

func TestScan(t *testing.T) {
	output := t.TempDir()
	jammyArm := writeArtifact(t, output, "ubuntu", "22.04", "arm64", "hello\n", true)
	jammyAmd := writeArtifact(t, output, "ubuntu", "22.04", "amd64", "hi", false)
	noble := writeArtifact(t, output, "ubuntu", "24.04", "amd64", "hello\n", true)
	require.NoError(t, os.MkdirAll(filepath.Join(output, "ubuntu", "24.04", "arm64", "rootfs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(output, "ubuntu", "README"), nil, 0644))

	got, err := artifact.Scan(output, target.OSUbuntu)
	require.NoError(t, err)

	want := []artifact.Artifact{
		{OS: target.OSUbuntu, Version: "22.04", Arch: "amd64", Path: jammyAmd, Size: 2},
		{OS: target.OSUbuntu, Version: "22.04", Arch: "arm64", Path: jammyArm, Size: 6, MD5: "b1946ac92492d2347c6235b4d2611184"},
		{OS: target.OSUbuntu, Version: "24.04", Arch: "amd64", Path: noble, Size: 6, MD5: "b1946ac92492d2347c6235b4d2611184"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "ubuntu/22.04/arm64/ubuntu-22.04-arm64-rootfs.tar.gz", got[1].RelPath())
	assert.Equal(t, jammyArm+".md5", got[1].ChecksumPath())
}

func TestScanPrefersArchiveWithChecksum(t *testing.T) {
	output := t.TempDir()
	dir := filepath.Join(output, "ubuntu", "22.04", "amd64")
	require.NoError(t, os.MkdirAll(dir, 0755))
	stale := filepath.Join(dir, "old-rootfs.tar.gz")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))
	current := writeArtifact(t, output, "ubuntu", "22.04", "amd64", "hello\n", true)

	got, err := artifact.Scan(output, target.OSUbuntu)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, current, got[0].Path)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184", got[0].MD5)
}

func TestScanMissingOS(t *testing.T) {
	got, err := artifact.Scan(t.TempDir(), target.OSAlpine)
	require.NoError(t, err)
	assert.Empty(t, got)
}
