// Package session stores in-flight upload sessions keyed by opaque id.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
)

// Store keeps upload sessions between initiation and confirmation. Sessions
// are immutable once created; implementations must be safe for concurrent
// use, and Delete on a missing id must be a no-op.
//
// Claim atomically removes and returns the session: of any number of
// concurrent claims for the same id, exactly one receives the session and
// the rest get SESSION_NOT_FOUND.
type Store interface {
	Create(ctx context.Context, s *entity.UploadSession) error
	Get(ctx context.Context, id uuid.UUID) (*entity.UploadSession, error)
	Claim(ctx context.Context, id uuid.UUID) (*entity.UploadSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func errNotFound(id uuid.UUID) error {
	return common.Errorf(common.CodeSessionNotFound, "upload session %s not found", id)
}
