package binfmt_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/binfmt"
	mockrunner "github.com/osbuild/rootfs-composer/internal/mocks/runner"
)

func TestEnableAndRelease(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	fake := mockrunner.New()
	r := binfmt.NewRegistrar(fake, t.TempDir(), logger)

	release, err := r.Enable(context.Background(), arch.ArchArm64)
	require.NoError(t, err)
	assert.Equal(t, []string{"update-binfmts --enable qemu-aarch64"}, fake.Commands())

	require.NoError(t, release())
	assert.Equal(t, []string{
		"update-binfmts --enable qemu-aarch64",
		"update-binfmts --disable qemu-aarch64",
	}, fake.Commands())
}

func TestEnableAlreadyEnabled(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qemu-arm"), []byte("enabled\ninterpreter /usr/bin/qemu-arm-static\n"), 0644))

	fake := mockrunner.New()
	r := binfmt.NewRegistrar(fake, dir, logger)

	release, err := r.Enable(context.Background(), arch.ArchArmhf)
	require.NoError(t, err)
	require.NoError(t, release())
	assert.Empty(t, fake.Commands())
}

func TestEnableDisabledEntry(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qemu-aarch64"), []byte("disabled\n"), 0644))

	fake := mockrunner.New()
	r := binfmt.NewRegistrar(fake, dir, logger)

	enabled, err := r.Enabled(arch.ArchArm64)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = r.Enable(context.Background(), arch.ArchArm64)
	require.NoError(t, err)
	assert.True(t, fake.Ran("--enable qemu-aarch64"))
}

func TestEnableFailure(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	fake := mockrunner.New()
	fake.FailWhen("--enable")
	r := binfmt.NewRegistrar(fake, t.TempDir(), logger)

	release, err := r.Enable(context.Background(), arch.ArchArm64)
	require.Error(t, err)
	require.NotNil(t, release)
	require.NoError(t, release())
	assert.False(t, fake.Ran("--disable"))
}
