package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
)

// InvoiceFileRepository is the persistence collaborator the pipeline uses to
// record successfully uploaded files.
type InvoiceFileRepository interface {
	Create(ctx context.Context, f *entity.InvoiceFile) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceFile, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.InvoiceFile, error)
}

type invoiceFileRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewInvoiceFileRepository(pool *pgxpool.Pool, logger *slog.Logger) InvoiceFileRepository {
	return &invoiceFileRepo{pool: pool, logger: logger}
}

func (r *invoiceFileRepo) Create(ctx context.Context, f *entity.InvoiceFile) (uuid.UUID, error) {
	id := f.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	uploadedAt := f.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invoice_files
			(id, user_id, original_name, stored_name, object_key, file_size, content_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, f.UserID, f.OriginalName, f.StoredName, f.ObjectKey, f.FileSize, f.ContentType, uploadedAt,
	)
	if err != nil {
		r.logger.Error("repository.invoice_file.create_failed",
			"user_id", f.UserID, "object_key", f.ObjectKey, "error", err)
		return uuid.Nil, common.NewAppError(common.CodeRecordPersistenceFailed, "create invoice file record", err)
	}
	return id, nil
}

func (r *invoiceFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceFile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, original_name, stored_name, object_key, file_size, content_type, uploaded_at
		FROM invoice_files WHERE id = $1`, id)
	var f entity.InvoiceFile
	if err := row.Scan(&f.ID, &f.UserID, &f.OriginalName, &f.StoredName,
		&f.ObjectKey, &f.FileSize, &f.ContentType, &f.UploadedAt); err != nil {
		r.logger.Error("repository.invoice_file.get_failed", "id", id, "error", err)
		return nil, err
	}
	return &f, nil
}

func (r *invoiceFileRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.InvoiceFile, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, original_name, stored_name, object_key, file_size, content_type, uploaded_at
		FROM invoice_files WHERE user_id = $1
		ORDER BY uploaded_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		r.logger.Error("repository.invoice_file.list_failed", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.InvoiceFile
	for rows.Next() {
		var f entity.InvoiceFile
		if err := rows.Scan(&f.ID, &f.UserID, &f.OriginalName, &f.StoredName,
			&f.ObjectKey, &f.FileSize, &f.ContentType, &f.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
