package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "alpine-3.20.3-amd64-rootfs.tar.gz")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestWriteAndVerify(t *testing.T) {
	archive := writeArchive(t, "hello\n")

	sum, err := Write(archive)
	require.NoError(t, err)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184", sum)

	data, err := os.ReadFile(PathFor(archive))
	require.NoError(t, err)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184  alpine-3.20.3-amd64-rootfs.tar.gz\n", string(data))

	assert.NoError(t, Verify(archive))
}

func TestVerifyDetectsMutation(t *testing.T) {
	archive := writeArchive(t, "some archive bytes")
	_, err := Write(archive)
	require.NoError(t, err)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	data[3] ^= 0x01
	require.NoError(t, os.WriteFile(archive, data, 0644))

	err = Verify(archive)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestReadFormats(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, "bare.md5")
	require.NoError(t, os.WriteFile(bare, []byte("B1946AC92492D2347C6235B4D2611184\n"), 0644))
	sum, err := Read(bare)
	require.NoError(t, err)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184", sum)

	empty := filepath.Join(dir, "empty.md5")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = Read(empty)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.md5")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-digest file\n"), 0644))
	_, err = Read(garbage)
	assert.Error(t, err)
}

func TestVerifyMissingChecksum(t *testing.T) {
	archive := writeArchive(t, "x")
	assert.Error(t, Verify(archive))
}
