package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix(t *testing.T) {
	jammy, err := UbuntuRelease("22.04")
	require.NoError(t, err)
	noble, err := UbuntuRelease("24.04")
	require.NoError(t, err)

	got := Matrix(OSUbuntu, []Release{jammy, noble}, []string{"amd64", "arm64"})
	want := []Target{
		{OS: OSUbuntu, Release: jammy, ArchToken: "amd64"},
		{OS: OSUbuntu, Release: jammy, ArchToken: "arm64"},
		{OS: OSUbuntu, Release: noble, ArchToken: "amd64"},
		{OS: OSUbuntu, Release: noble, ArchToken: "arm64"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Matrix() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	r, err := AlpineRelease("3.20.3")
	require.NoError(t, err)
	all := Matrix(OSAlpine, []Release{r}, []string{"amd64", "arm64", "i386"})

	assert.Len(t, Filter(all, nil, nil), 3)
	assert.Len(t, Filter(all, []string{"3.20.3"}, []string{"arm64"}), 1)
	assert.Empty(t, Filter(all, []string{"3.19.0"}, nil))
}

func TestLayoutDeterministic(t *testing.T) {
	r, err := AlpineRelease("3.20.3")
	require.NoError(t, err)
	tgt := Target{OS: OSAlpine, Release: r, ArchToken: "amd64"}
	l := Layout{Root: "/srv/rootfs/alpine"}

	assert.Equal(t, "/srv/rootfs/alpine/3.20.3/amd64/alpine-3.20.3-amd64-rootfs.tar.gz", l.ArchivePath(tgt))
	assert.Equal(t, l.ArchivePath(tgt), l.ArchivePath(tgt))
	assert.Equal(t, "/srv/rootfs/alpine/3.20.3/amd64/alpine-3.20.3-amd64-rootfs.tar.gz.md5", l.ChecksumPath(tgt))
	assert.Equal(t, "/srv/rootfs/alpine/3.20.3/amd64/rootfs", l.WorkingRoot(tgt))
}

func TestReleases(t *testing.T) {
	r, err := UbuntuRelease("20.04")
	require.NoError(t, err)
	assert.Equal(t, "focal", r.Codename)
	assert.Equal(t, "Focal Fossa", r.DisplayName())

	_, err = UbuntuRelease("21.10")
	assert.Error(t, err)

	a, err := AlpineRelease("3.20.3")
	require.NoError(t, err)
	assert.Equal(t, "3.20", a.Branch())
	assert.Equal(t, "Alpine-3.20.3", a.DisplayName())

	_, err = AlpineRelease("edge")
	assert.Error(t, err)

	_, err = ReleaseFor(OS("gentoo"), "1")
	assert.Error(t, err)
}

func TestTargetArch(t *testing.T) {
	tgt := Target{OS: OSUbuntu, ArchToken: "riscv64"}
	_, err := tgt.Arch()
	assert.Error(t, err)
	assert.Equal(t, "riscv64", tgt.Fields()["arch"])
}
