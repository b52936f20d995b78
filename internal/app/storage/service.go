/*
Package storage presigns object storage URLs for uploads and downloads.

Two drivers exist: an S3 driver for AWS and S3-compatible services, and an in-process
MemoryStore used in development and tests, which also serves the URLs it signs.
*/
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Drivers accepted by NewStorageService.
const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	Driver string

	S3BucketName      string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3SessionToken    string
	S3UsePathStyle    bool

	// MemoryBaseURL is the absolute URL prefix under which the MemoryStore is mounted.
	MemoryBaseURL string
	// MemorySecret keys the MemoryStore URL signatures.
	MemorySecret string
}

// Presigner issues time-limited URLs for a single object key. It never touches object bytes.
type Presigner interface {
	// PresignUpload returns a URL that accepts exactly one HTTP PUT of an object with the
	// given content type at key, valid for duration.
	PresignUpload(ctx context.Context, key string, mimeType string, duration time.Duration) (string, error)

	// PresignDownload returns a URL that serves the object at key via HTTP GET, valid for duration.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// StorageService is the full storage interface. Upload writes bytes server-side and is only
// used by operator tooling, never by request handlers.
type StorageService interface {
	Presigner

	Upload(ctx context.Context, key string, contentType string, body io.Reader) error
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on cfg.Driver.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	switch cfg.Driver {
	case DriverS3, "":
		return newS3Client(ctx, cfg)
	case DriverMemory:
		return NewMemoryStore(cfg.MemoryBaseURL, []byte(cfg.MemorySecret), time.Now), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
