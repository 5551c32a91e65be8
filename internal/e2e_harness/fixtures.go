package e2e_harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ButtonSchema is a small component definition with a nested object and an enum.
const ButtonSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Button",
  "type": "object",
  "required": ["label"],
  "properties": {
    "label": {"type": "string", "title": "Label", "default": "Click"},
    "size": {"type": "string", "enum": ["small", "medium", "large"]},
    "disabled": {"type": "boolean", "default": false},
    "icon": {"$ref": "#/$defs/Image"}
  },
  "$defs": {
    "Image": {
      "type": "object",
      "properties": {
        "src": {"type": "string", "x-asset": true},
        "alt": {"type": "string"}
      }
    }
  }
}`

// PutAsset uploads data to bucket/key on an S3-compatible endpoint,
// creating the bucket when needed.
func PutAsset(ctx context.Context, endpoint, bucket, key string, data []byte, contentType string) error {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(S3AccessKey, S3SecretKey, "")),
		config.WithBaseEndpoint(endpoint),
	)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if _, cerr := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
			var apiErr smithy.APIError
			if !errors.As(cerr, &apiErr) {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			if code := apiErr.ErrorCode(); code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
		}
	}

	uploader := manager.NewUploader(s3Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}
