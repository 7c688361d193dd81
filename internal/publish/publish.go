// Package publish uploads packaged root filesystems, their checksum
// files and the metadata index to object storage.
package publish

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/osbuild/rootfs-composer/internal/artifact"
	"github.com/osbuild/rootfs-composer/internal/prometheus"
)

const (
	DefaultConcurrency = 4

	contentTypeArchive  = "application/gzip"
	contentTypeChecksum = "text/plain"
	contentTypeJSON     = "application/json"
)

// Uploader stores a local file in a bucket.
type Uploader interface {
	Upload(ctx context.Context, key, filename, contentType string) error
	// Backend names the storage service, e.g. "s3".
	Backend() string
}

// Object is one file to upload.
type Object struct {
	Key         string
	Path        string
	ContentType string
}

// Objects lists the uploads for artifacts and, when indexPath is not
// empty, the index file. Keys mirror the layout below the output root
// and are placed under prefix.
func Objects(prefix string, artifacts []artifact.Artifact, indexPath string) []Object {
	var objects []Object
	for _, a := range artifacts {
		key := path.Join(prefix, a.RelPath())
		objects = append(objects,
			Object{Key: key, Path: a.Path, ContentType: contentTypeArchive},
			Object{Key: key + ".md5", Path: a.ChecksumPath(), ContentType: contentTypeChecksum},
		)
	}
	if indexPath != "" {
		objects = append(objects, Object{
			Key:         path.Join(prefix, path.Base(indexPath)),
			Path:        indexPath,
			ContentType: contentTypeJSON,
		})
	}
	return objects
}

type Options struct {
	Concurrency int
	Logger      logrus.FieldLogger
}

// Publish uploads every object, at most Concurrency at a time. It keeps
// going after a failed upload and returns all failures together.
func Publish(ctx context.Context, u Uploader, objects []Object, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		result = multierror.Append(result, err)
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	for _, obj := range objects {
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(fmt.Errorf("%s: %w", obj.Key, err))
			break
		}
		wg.Add(1)

		go func(obj Object) {
			defer sem.Release(1)
			defer wg.Done()

			l := logger.WithFields(logrus.Fields{"backend": u.Backend(), "key": obj.Key})
			l.Infof("Uploading %s", obj.Path)
			err := u.Upload(ctx, obj.Key, obj.Path, obj.ContentType)
			prometheus.UploadFinished(u.Backend(), err)
			if err != nil {
				l.Errorf("Upload failed: %v", err)
				fail(fmt.Errorf("%s: %w", obj.Key, err))
				return
			}
			l.Debug("Upload done")
		}(obj)
	}
	wg.Wait()

	return result.ErrorOrNil()
}
