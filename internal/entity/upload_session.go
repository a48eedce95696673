package entity

import (
	"time"

	"github.com/google/uuid"
)

// UploadSession represents one in-flight direct-to-store transfer. It is
// created before any bytes move and is immutable afterwards; it is removed on
// confirmation or expiry.
type UploadSession struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	ObjectKey     string    `json:"object_key"`
	TransientFile string    `json:"transient_file,omitempty"` // AI-provider file handle, if any
	Filename      string    `json:"filename"`
	FileSize      int64     `json:"file_size"`
	ContentType   string    `json:"content_type"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
