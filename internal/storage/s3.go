package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// uploader is the part of manager.Uploader the publisher needs.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// bucketHeader is the part of s3.Client used for health checks.
type bucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Publisher uploads exported PDFs to a bucket under a key prefix.
type S3Publisher struct {
	bucket   string
	prefix   string
	uploader uploader
	head     bucketHeader
}

// NewS3Publisher loads the default AWS credential chain and prepares an
// uploader for bucket.
func NewS3Publisher(ctx context.Context, bucket, prefix string) (*S3Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: artifact bucket is empty", result.ErrComponentInit)
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", result.ErrComponentInit, err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Publisher{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(cli),
		head:     cli,
	}, nil
}

// Bucket returns the target bucket name.
func (p *S3Publisher) Bucket() string { return p.bucket }

// Key joins the configured prefix and name.
func (p *S3Publisher) Key(name string) string {
	prefix := strings.Trim(p.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Publish uploads localPath as <prefix>/<key> and returns its s3:// URL.
func (p *S3Publisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: open artifact: %v", result.ErrFilesystem, err)
	}
	defer f.Close()

	fullKey := p.Key(key)
	if _, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(fullKey),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	}); err != nil {
		return "", fmt.Errorf("%w: upload to S3: %v", result.ErrExternalTool, err)
	}

	url := fmt.Sprintf("s3://%s/%s", p.bucket, fullKey)
	log.Info().Str("key", fullKey).Str("bucket", p.bucket).Msg("artifact uploaded")
	return url, nil
}

// Ping checks the bucket is reachable with the current credentials.
func (p *S3Publisher) Ping(ctx context.Context) error {
	_, err := p.head.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	return err
}
