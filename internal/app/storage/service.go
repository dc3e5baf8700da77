package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// BlobStore defines the public interface for the attachment blob store.
type BlobStore interface {
	// Upload streams one attachment body into the bucket under the given key.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) error

	// PresignDownload generates a time-limited URL for downloading a stored blob.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewBlobStore is the factory function for BlobStore.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewBlobStore(cfg ServiceConfig) (BlobStore, error) {
	// Currently, only S3-compatible implementations are supported.
	return newS3Client(cfg)
}
