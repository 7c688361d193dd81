package publish

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinIO struct {
	buckets map[string]bool
	puts    []string
}

func (f *fakeMinIO) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeMinIO) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeMinIO) FPutObject(ctx context.Context, bucket, key, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.puts = append(f.puts, bucket+"/"+key+" "+opts.ContentType)
	return minio.UploadInfo{Bucket: bucket, Key: key}, nil
}

func TestMinIOConfigValidate(t *testing.T) {
	valid := MinIOConfig{Endpoint: "localhost:9000", Bucket: "rootfs"}
	assert.NoError(t, valid.Validate())

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	assert.Error(t, invalid.Validate())

	invalid = valid
	invalid.Bucket = " "
	assert.Error(t, invalid.Validate())
}

func TestMinIOPrepare(t *testing.T) {
	fake := &fakeMinIO{buckets: map[string]bool{}}
	m := &MinIO{cfg: MinIOConfig{Bucket: "rootfs"}, client: fake}
	assert.EqualError(t, m.Prepare(context.Background()), "bucket missing: rootfs")

	m.cfg.CreateBucket = true
	require.NoError(t, m.Prepare(context.Background()))
	assert.True(t, fake.buckets["rootfs"])
}

func TestMinIOUpload(t *testing.T) {
	fake := &fakeMinIO{buckets: map[string]bool{"rootfs": true}}
	m := &MinIO{cfg: MinIOConfig{Bucket: "rootfs"}, client: fake}
	require.NoError(t, m.Upload(context.Background(), "rootfs_metadata.json", "/tmp/x", contentTypeJSON))
	assert.Equal(t, []string{"rootfs/rootfs_metadata.json application/json"}, fake.puts)
	assert.Equal(t, "minio", m.Backend())
}

func TestNewMinIO(t *testing.T) {
	m, err := NewMinIO(MinIOConfig{Endpoint: "localhost:9000", Bucket: "rootfs", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, m.client)

	_, err = NewMinIO(MinIOConfig{Bucket: "rootfs"})
	assert.Error(t, err)
}
