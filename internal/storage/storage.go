// Package storage is the object store for user-uploaded images.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"rollermate/internal/config"
	"rollermate/internal/model"
)

// ObjectStore uploads by key, resolves public URLs and deletes.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (*model.UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// R2Store is an ObjectStore on Cloudflare R2 through the S3 API.
type R2Store struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// NewR2Store constructs an S3-compatible client for Cloudflare R2.
func NewR2Store(ctx context.Context, cfg *config.Config) (*R2Store, error) {
	if !cfg.StorageConfigured() {
		return nil, model.ErrStorageUnavailable
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		s3Client:  s3Client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

func (s *R2Store) Put(ctx context.Context, key string, body []byte, contentType string) (*model.UploadResult, error) {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(model.ImageCacheControl),
	})
	if err != nil {
		return nil, model.Upstream("upload to r2", err)
	}
	return &model.UploadResult{URL: s.PublicURL(key), Key: key}, nil
}

// Delete removes an object by key. An empty key is a no-op.
func (s *R2Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return model.Upstream("delete from r2", err)
	}
	return nil
}

func (s *R2Store) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

// Disabled stands in when object storage is not configured. Text-only posts
// still work; anything that uploads fails with ErrStorageUnavailable.
type Disabled struct{}

func (Disabled) Put(context.Context, string, []byte, string) (*model.UploadResult, error) {
	return nil, model.ErrStorageUnavailable
}

func (Disabled) Delete(context.Context, string) error { return nil }

// PostImageKey is posts/<author>/<unix_millis>-<uuid>.jpg.
func PostImageKey(authorID string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s%s", model.PostImageFolder, authorID, now.UnixMilli(), uuid.NewString(), model.ImageExt)
}

// AvatarKey is avatars/<uuid>.jpg.
func AvatarKey() string {
	return fmt.Sprintf("%s/%s%s", model.AvatarFolder, uuid.NewString(), model.ImageExt)
}
