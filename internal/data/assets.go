package data

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"CoverLane/internal/conf"
	pkglog "CoverLane/pkg/log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/go-kratos/kratos/v2/log"
)

// AssetStore persists rendered images and returns the URL clients fetch them from.
type AssetStore interface {
	Put(ctx context.Context, platformID string, data []byte, contentType string) (string, error)
}

// NewAssetStore returns the S3 store when a bucket is configured, the inline
// data-URI store otherwise.
func NewAssetStore(c *conf.Data, logger log.Logger) (AssetStore, error) {
	helper := log.NewHelper(logger)

	if c == nil || c.S3 == nil || c.S3.Bucket == "" {
		helper.Info("S3 not configured, rendered images are returned inline")
		return NewInlineAssetStore(), nil
	}

	awsConfig := &aws.Config{
		Region:           aws.String(c.S3.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if c.S3.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(c.S3.AccessKey, c.S3.SecretKey, "")
	}
	if c.S3.Endpoint != "" {
		awsConfig.Endpoint = aws.String(c.S3.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	helper.Infow("msg", "rendered images stored in S3", "bucket", c.S3.Bucket, "endpoint", c.S3.Endpoint)
	return NewS3AssetStore(s3manager.NewUploader(sess), c.S3, logger), nil
}

// S3AssetStore uploads images under content-addressed keys, so re-rendering
// an identical cover overwrites the same object.
type S3AssetStore struct {
	uploader  s3manageriface.UploaderAPI
	bucket    string
	keyPrefix string
	publicURL string
	logger    *pkglog.LogHelper
}

// NewS3AssetStore creates an S3 asset store using uploader.
func NewS3AssetStore(uploader s3manageriface.UploaderAPI, c *conf.Data_S3, logger log.Logger) *S3AssetStore {
	return &S3AssetStore{
		uploader:  uploader,
		bucket:    c.Bucket,
		keyPrefix: strings.Trim(c.KeyPrefix, "/"),
		publicURL: strings.TrimRight(c.PublicURL, "/"),
		logger:    pkglog.NewLogHelper(logger),
	}
}

// ObjectKey returns {prefix}/{platform}/{md5}.{ext}.
func (s *S3AssetStore) ObjectKey(platformID string, data []byte, contentType string) string {
	sum := md5.Sum(data)
	name := hex.EncodeToString(sum[:]) + "." + extensionFor(contentType)
	if s.keyPrefix == "" {
		return path.Join(platformID, name)
	}
	return path.Join(s.keyPrefix, platformID, name)
}

// Put uploads data and returns its public URL.
func (s *S3AssetStore) Put(ctx context.Context, platformID string, data []byte, contentType string) (string, error) {
	key := s.ObjectKey(platformID, data, contentType)

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		s.logger.Storage("upload failed", "bucket", s.bucket, "key", key, "error", err)
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	s.logger.Storage("cover uploaded", "key", key, "bytes", len(data))
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return out.Location, nil
}

// InlineAssetStore returns images as data URIs.
type InlineAssetStore struct{}

// NewInlineAssetStore creates the inline store.
func NewInlineAssetStore() *InlineAssetStore {
	return &InlineAssetStore{}
}

// Put encodes data as a base64 data URI.
func (InlineAssetStore) Put(_ context.Context, _ string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
