package publish_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/rootfs-composer/internal/artifact"
	"github.com/osbuild/rootfs-composer/internal/checksum"
	mockpublish "github.com/osbuild/rootfs-composer/internal/mocks/publish"
	"github.com/osbuild/rootfs-composer/internal/publish"
	"github.com/osbuild/rootfs-composer/internal/target"
)

func makeOutput(t *testing.T) (string, []artifact.Artifact, string) {
	t.Helper()
	output := t.TempDir()
	for _, arch := range []string{"amd64", "arm64", "armhf"} {
		dir := filepath.Join(output, "ubuntu", "22.04", arch)
		require.NoError(t, os.MkdirAll(dir, 0755))
		p := filepath.Join(dir, "ubuntu-22.04-"+arch+"-rootfs.tar.gz")
		require.NoError(t, os.WriteFile(p, []byte(arch), 0644))
		_, err := checksum.Write(p)
		require.NoError(t, err)
	}
	indexPath := filepath.Join(output, "rootfs_metadata.json")
	require.NoError(t, os.WriteFile(indexPath, []byte("{}\n"), 0644))

	artifacts, err := artifact.Scan(output, target.OSUbuntu)
	require.NoError(t, err)
	return output, artifacts, indexPath
}

func TestObjects(t *testing.T) {
	_, artifacts, indexPath := makeOutput(t)
	objects := publish.Objects("rootfs/", artifacts[:1], indexPath)
	require.Len(t, objects, 3)
	assert.Equal(t, "rootfs/ubuntu/22.04/amd64/ubuntu-22.04-amd64-rootfs.tar.gz", objects[0].Key)
	assert.Equal(t, "application/gzip", objects[0].ContentType)
	assert.Equal(t, "rootfs/ubuntu/22.04/amd64/ubuntu-22.04-amd64-rootfs.tar.gz.md5", objects[1].Key)
	assert.Equal(t, "rootfs/rootfs_metadata.json", objects[2].Key)

	objects = publish.Objects("", artifacts[:1], "")
	require.Len(t, objects, 2)
	assert.Equal(t, "ubuntu/22.04/amd64/ubuntu-22.04-amd64-rootfs.tar.gz", objects[0].Key)
}

func TestPublishUploadsEverything(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	_, artifacts, indexPath := makeOutput(t)
	fake := mockpublish.New()
	fake.Delay = 10 * time.Millisecond

	objects := publish.Objects("", artifacts, indexPath)
	err := publish.Publish(context.Background(), fake, objects, publish.Options{Concurrency: 2, Logger: logger})
	require.NoError(t, err)

	assert.Len(t, fake.Keys(), 7)
	assert.LessOrEqual(t, fake.MaxInFlight, 2)

	data, contentType := fake.Object("ubuntu/22.04/arm64/ubuntu-22.04-arm64-rootfs.tar.gz")
	assert.Equal(t, "arm64", string(data))
	assert.Equal(t, "application/gzip", contentType)

	sum, _ := fake.Object("ubuntu/22.04/arm64/ubuntu-22.04-arm64-rootfs.tar.gz.md5")
	assert.Contains(t, string(sum), "ubuntu-22.04-arm64-rootfs.tar.gz")
}

func TestPublishCollectsFailures(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	_, artifacts, indexPath := makeOutput(t)
	fake := mockpublish.New()
	fake.Fail = map[string]bool{
		"ubuntu/22.04/amd64/ubuntu-22.04-amd64-rootfs.tar.gz": true,
		"rootfs_metadata.json":                                true,
	}

	err := publish.Publish(context.Background(), fake, publish.Objects("", artifacts, indexPath), publish.Options{Logger: logger})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Len(t, fake.Keys(), 5)
}

func TestPublishCancelled(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	_, artifacts, indexPath := makeOutput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publish.Publish(ctx, mockpublish.New(), publish.Objects("", artifacts, indexPath), publish.Options{Logger: logger})
	assert.ErrorIs(t, err, context.Canceled)
}
