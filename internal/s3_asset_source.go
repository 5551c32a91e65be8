package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/propval"
)

// s3HeadAPI is the subset of the S3 client used to inspect objects.
type s3HeadAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// s3DownloadAPI is the subset of the transfer manager used to fetch objects.
type s3DownloadAPI interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3AssetSource downloads assets referenced as s3://bucket/key.
type S3AssetSource struct {
	head       s3HeadAPI
	downloader s3DownloadAPI
	maxBytes   int64
}

// NewS3AssetSource builds an S3 client from the default AWS configuration.
// Static credentials from AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY take
// precedence, and a custom endpoint enables S3-compatible stores.
func NewS3AssetSource(ctx context.Context, cfg propval.AssetConfig) (*S3AssetSource, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.S3Region),
	}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"))))
	}
	if cfg.S3Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.S3Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return newS3AssetSource(client, manager.NewDownloader(client), cfg.MaxBytes), nil
}

func newS3AssetSource(head s3HeadAPI, downloader s3DownloadAPI, maxBytes int64) *S3AssetSource {
	return &S3AssetSource{head: head, downloader: downloader, maxBytes: maxBytes}
}

// Fetch downloads an object and returns its bytes and stored content type.
func (s *S3AssetSource) Fetch(ctx context.Context, location string) ([]byte, string, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, "", propval.NewAssetError(propval.ErrCodeAssetFailed, location, err)
	}

	head, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", classifyS3Error(location, err)
	}

	size := aws.ToInt64(head.ContentLength)
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, "", propval.NewAssetError(propval.ErrCodeAssetTooLarge, location, nil).
			WithDetail("size", size).
			WithDetail("maxBytes", s.maxBytes)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", classifyS3Error(location, err)
	}

	return buf.Bytes()[:n], aws.ToString(head.ContentType), nil
}

func parseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs bucket and key: %s", location)
	}
	return bucket, key, nil
}

func classifyS3Error(location string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return propval.NewAssetError(propval.ErrCodeAssetNotFound, location, err)
		}
	}
	return propval.NewAssetError(propval.ErrCodeAssetFailed, location, err)
}
