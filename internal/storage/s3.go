package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/creamininja/backend/internal/config"
	"github.com/creamininja/backend/internal/logging"
)

// ErrObjectNotFound reports that a key has no object behind it.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object is a stored object opened for reading. The caller owns Body and must
// close it.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// S3Storage serves uploads from an S3-compatible bucket. Clients write
// through presigned PUT URLs; the API reads objects back to enforce access
// checks before serving them.
type S3Storage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	uploader   *manager.Uploader
	bucket     string
	presignTTL time.Duration
}

// NewS3Storage configures clients targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &S3Storage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		uploader:   uploader,
		bucket:     cfg.Bucket,
		presignTTL: ttl,
	}, nil
}

// PresignPut returns a URL a client can PUT the object to directly, scoped to
// one key and content type and valid for the configured window.
func (s *S3Storage) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	ctx, span := logging.StartSpan(ctx, "storage.presign_put")
	defer span.End()

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

// Get opens the object at key for streaming.
func (s *S3Storage) Get(ctx context.Context, key string) (Object, error) {
	ctx, span := logging.StartSpan(ctx, "storage.get")
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("get object %s: %w", key, err)
	}

	obj := Object{Body: out.Body, ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// Upload writes the content server-side. The seed command uses it to push
// fixture images; regular client uploads go through presigned URLs instead.
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, span := logging.StartSpan(ctx, "storage.upload")
	defer span.End()

	key = strings.TrimLeft(key, "/")
	if key == "" {
		return fmt.Errorf("s3 storage: empty key")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        manager.ReadSeekCloser(r),
	})
	if err != nil {
		return fmt.Errorf("s3 storage upload %s: %w", key, err)
	}
	return nil
}

// Delete removes the object; deleting a missing key is not an error.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
