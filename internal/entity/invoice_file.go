package entity

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceFile represents a stored invoice file record for data transfer
// between layers.
type InvoiceFile struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	ObjectKey    string    `json:"object_key"`
	FileSize     int64     `json:"file_size"`
	ContentType  string    `json:"content_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
