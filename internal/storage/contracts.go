// Package storage is the archival object-store boundary: pre-signed
// credentials, direct puts and object lifecycle.
package storage

import (
	"context"
	"time"
)

// UploadCredential is a scoped, time-limited permission for one direct write
// against the archive store.
type UploadCredential struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	ObjectKey   string            `json:"object_key"`
	ContentType string            `json:"content_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// ObjectMetadata describes a stored object without fetching its bytes.
type ObjectMetadata struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ArchiveStore is the long-term object storage collaborator.
type ArchiveStore interface {
	IssueUploadCredential(ctx context.Context, key, contentType string, ttl time.Duration) (*UploadCredential, error)
	IssueDownloadCredential(ctx context.Context, key string, ttl time.Duration) (string, error)
	Put(ctx context.Context, key, contentType string, body []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Metadata(ctx context.Context, key string) (*ObjectMetadata, error)
	Delete(ctx context.Context, key string) error
}
