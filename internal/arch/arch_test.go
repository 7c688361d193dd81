package arch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNameSupported(t *testing.T) {
	for _, a := range All {
		for _, s := range []Scheme{SchemeCanonical, SchemeAlpine, SchemeDebootstrap, SchemeQemu} {
			name, err := ResolveName(a.String(), s)
			require.NoError(t, err)
			assert.NotEmpty(t, name, "%s/%s", a, s)
		}
	}
}

func TestResolveNameTable(t *testing.T) {
	tests := []struct {
		token  string
		scheme Scheme
		want   string
	}{
		{"amd64", SchemeAlpine, "x86_64"},
		{"arm64", SchemeAlpine, "aarch64"},
		{"armhf", SchemeAlpine, "armhf"},
		{"i386", SchemeAlpine, "x86"},
		{"amd64", SchemeDebootstrap, "amd64"},
		{"aarch64", SchemeDebootstrap, "arm64"},
		{"armhf", SchemeQemu, "arm"},
		{"x86", SchemeQemu, "i386"},
	}
	for _, tt := range tests {
		name, err := ResolveName(tt.token, tt.scheme)
		require.NoError(t, err)
		assert.Equal(t, tt.want, name, "%s/%s", tt.token, tt.scheme)
	}
}

func TestResolveNameUnsupported(t *testing.T) {
	for _, token := range []string{"", "riscv64", "s390x", "AMD64", "ppc64el"} {
		name, err := ResolveName(token, SchemeAlpine)
		assert.Empty(t, name)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupported), token)

		var ue *UnsupportedError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, token, ue.Token)
		assert.Equal(t, SchemeAlpine, ue.Scheme)
	}
}

func TestPorted(t *testing.T) {
	assert.False(t, ArchAmd64.Ported())
	assert.False(t, ArchI386.Ported())
	assert.True(t, ArchArm64.Ported())
	assert.True(t, ArchArmhf.Ported())
}

func TestRunsOn(t *testing.T) {
	assert.True(t, ArchAmd64.RunsOn(ArchAmd64))
	assert.True(t, ArchI386.RunsOn(ArchAmd64))
	assert.False(t, ArchArm64.RunsOn(ArchAmd64))
	assert.False(t, ArchArmhf.RunsOn(ArchArm64))
	assert.False(t, ArchAmd64.RunsOn(ArchI386))
}

func TestQemuNames(t *testing.T) {
	assert.Equal(t, "qemu-aarch64-static", ArchArm64.QemuBinary())
	assert.Equal(t, "qemu-arm", ArchArmhf.BinfmtEntry())
}

func TestHost(t *testing.T) {
	restore := MockGOARCH("arm64")
	a, err := Host()
	restore()
	require.NoError(t, err)
	assert.Equal(t, ArchArm64, a)

	defer MockGOARCH("mips")()
	_, err = Host()
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestInvalidArchPanics(t *testing.T) {
	assert.Panics(t, func() { Arch(42).Name(SchemeAlpine) })
	assert.Equal(t, "arch(42)", Arch(42).String())
}
