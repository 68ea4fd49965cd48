// Package storage persists picture bytes to S3-compatible object storage
// and mints time-bounded retrieval links.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/picvault/picvault/internal/apperr"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/logger"
	"go.uber.org/zap"
)

// S3Store wraps a MinIO client pinned to one bucket. Safe for concurrent
// reuse across requests.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg *config.StorageConfig) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "creating object store client", err)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload stores the bytes under key. The caller's freshly generated key is
// assumed unique; no overwrite protection is performed.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "uploading object", err)
	}

	logger.Info("uploaded object", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Presign produces a signed retrieval URL valid for expiry. It does not
// verify the object exists.
func (s *S3Store) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "presigning object", err)
	}

	logger.Info("presigned object", zap.String("key", key), zap.Duration("expiry", expiry))
	return signed.String(), nil
}

// NewObjectKey returns a fresh random 128-bit identifier rendered as hex
// with a .jpg suffix. One key per request, never reused.
func NewObjectKey() string {
	id := uuid.New()
	return hex.EncodeToString(id[:]) + ".jpg"
}
