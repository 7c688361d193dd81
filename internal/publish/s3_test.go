package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	acls []string
}

func (f *fakeS3) PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.acls = append(f.acls, aws.ToString(in.Key)+"="+string(in.ACL))
	return &s3.PutObjectAclOutput{}, nil
}

type fakeS3Uploader struct {
	bodies map[string]string
	err    error
}

func (f *fakeS3Uploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.bodies[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(data)
	return &manager.UploadOutput{}, nil
}

func writeTemp(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestS3Upload(t *testing.T) {
	api := &fakeS3{}
	up := &fakeS3Uploader{bodies: map[string]string{}}
	s := newS3ForTest("rootfs", true, api, up)

	require.NoError(t, s.Upload(context.Background(), "alpine/x.tar.gz", writeTemp(t, "data"), contentTypeArchive))
	assert.Equal(t, map[string]string{"rootfs/alpine/x.tar.gz": "data"}, up.bodies)
	assert.Equal(t, []string{"alpine/x.tar.gz=" + string(s3types.ObjectCannedACLPublicRead)}, api.acls)
	assert.Equal(t, "s3", s.Backend())
}

func TestS3UploadPrivate(t *testing.T) {
	api := &fakeS3{}
	s := newS3ForTest("rootfs", false, api, &fakeS3Uploader{bodies: map[string]string{}})
	require.NoError(t, s.Upload(context.Background(), "k", writeTemp(t, "data"), contentTypeArchive))
	assert.Empty(t, api.acls)
}

func TestS3UploadErrors(t *testing.T) {
	api := &fakeS3{}
	s := newS3ForTest("rootfs", true, api, &fakeS3Uploader{err: errors.New("slow down")})
	assert.EqualError(t, s.Upload(context.Background(), "k", writeTemp(t, "data"), contentTypeArchive), "slow down")
	assert.Empty(t, api.acls)

	err := s.Upload(context.Background(), "k", filepath.Join(t.TempDir(), "missing"), contentTypeArchive)
	assert.True(t, os.IsNotExist(err))
}
