package publish

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// AccessKeyID and SecretAccessKey are optional, the default credential
	// chain is used without them.
	AccessKeyID     string
	SecretAccessKey string
	// CredentialsFile points at a shared credentials file.
	CredentialsFile     string
	CABundle            string
	SkipSSLVerification bool
	Public              bool
}

type s3API interface {
	PutObjectAcl(context.Context, *s3.PutObjectAclInput, ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
}

type s3Uploader interface {
	Upload(context.Context, *s3.PutObjectInput, ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3 struct {
	bucket   string
	public   bool
	s3       s3API
	uploader s3Uploader
}

func newS3ForTest(bucket string, public bool, api s3API, uploader s3Uploader) *S3 {
	return &S3{bucket: bucket, public: public, s3: api, uploader: uploader}
}

// NewS3 creates an uploader for an S3 compatible service. A non-empty
// Endpoint switches to path style addressing.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	optionFuncs := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	switch {
	case cfg.AccessKeyID != "":
		optionFuncs = append(optionFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case cfg.CredentialsFile != "":
		optionFuncs = append(optionFuncs, config.WithSharedCredentialsFiles([]string{cfg.CredentialsFile, "default"}))
	}

	if cfg.CABundle != "" {
		caBundleReader, err := os.Open(cfg.CABundle)
		if err != nil {
			return nil, err
		}
		defer caBundleReader.Close()
		optionFuncs = append(optionFuncs, config.WithCustomCABundle(caBundleReader))
	}

	if cfg.SkipSSLVerification {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		optionFuncs = append(optionFuncs, config.WithHTTPClient(&http.Client{
			Transport: transport,
		}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optionFuncs...)
	if err != nil {
		return nil, err
	}

	s3cli := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
			options.UsePathStyle = true
		}
	})

	return &S3{
		bucket:   cfg.Bucket,
		public:   cfg.Public,
		s3:       s3cli,
		uploader: manager.NewUploader(s3cli),
	}, nil
}

func (s *S3) Backend() string {
	return "s3"
}

func (s *S3) Upload(ctx context.Context, key, filename, contentType string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}

	defer func() {
		err := file.Close()
		if err != nil {
			logrus.Warnf("Failed to close %s after upload: %v", filename, err)
		}
	}()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}

	if s.public {
		_, err = s.s3.PutObjectAcl(ctx, &s3.PutObjectAclInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			ACL:    s3types.ObjectCannedACLPublicRead,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
