package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
	"github.com/invoicevault/invoicevault/internal/imaging"
	"github.com/invoicevault/invoicevault/internal/intake"
	"github.com/invoicevault/invoicevault/internal/llm"
	"github.com/invoicevault/invoicevault/internal/pdf"
	"github.com/invoicevault/invoicevault/internal/storage"
)

// The two-phase variant splits the pipeline at the store transfer: the
// client uploads directly with a pre-signed credential, then confirms, and
// the server finishes extraction and bookkeeping. A session created before
// any byte moves is the only thing bridging the two phases.

// InitRequest starts a two-phase upload.
type InitRequest struct {
	UserID      uuid.UUID
	Filename    string
	Size        int64
	ContentType string
	// TransientFile is an AI-provider file handle the client already created,
	// if it chose direct transient upload as its extraction input. Deleted
	// during confirmation.
	TransientFile string
}

// InitResponse hands the client everything it needs for the direct transfer.
type InitResponse struct {
	SessionID  uuid.UUID                  `json:"session_id"`
	Credential *storage.UploadCredential  `json:"credential"`
	ExpiresAt  time.Time                  `json:"expires_at"`
}

// ConfirmResult is the server-side completion of a confirmed upload.
type ConfirmResult struct {
	FileID    uuid.UUID
	ObjectKey string
	Extracted *llm.Extraction
}

// InitDirectUpload validates the declared file, issues a scoped write
// credential and records an upload session. No bytes move here.
func (c *Coordinator) InitDirectUpload(ctx context.Context, req InitRequest) (*InitResponse, error) {
	if err := intake.Validate(intake.FileInfo{
		Name:        req.Filename,
		Size:        req.Size,
		ContentType: req.ContentType,
	}); err != nil {
		return nil, err
	}

	key := c.rawObjectKey(req.UserID, req.Filename)
	credCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	cred, err := c.store.IssueUploadCredential(credCtx, key, req.ContentType, c.cfg.UploadURLTTL)
	cancel()
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	sess := &entity.UploadSession{
		ID:            uuid.New(),
		UserID:        req.UserID,
		ObjectKey:     key,
		TransientFile: req.TransientFile,
		Filename:      req.Filename,
		FileSize:      req.Size,
		ContentType:   req.ContentType,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.cfg.SessionTTL),
	}
	if err := c.sessions.Create(ctx, sess); err != nil {
		return nil, common.WrapError(err, "create upload session")
	}

	c.logger.Info("pipeline.init_direct_upload",
		"session_id", sess.ID,
		"user_id", req.UserID,
		"object_key", key,
		"expires_at", sess.ExpiresAt,
	)
	return &InitResponse{
		SessionID:  sess.ID,
		Credential: cred,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// ConfirmDirectUpload resumes server-side work after the client reports the
// direct transfer finished: claim the session, verify the object landed,
// extract, persist the record and clean up transient provider state. The
// claim consumes the session atomically, so of two racing confirms exactly
// one proceeds and the other reports SessionNotFound; an expired session is
// likewise consumed, so a second identical confirm reports SessionNotFound
// rather than failing loudly twice. The one retryable failure, the object
// never arriving, puts the session back for a later confirm.
func (c *Coordinator) ConfirmDirectUpload(ctx context.Context, sessionID uuid.UUID) (*ConfirmResult, error) {
	sess, err := c.sessions.Claim(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Expired(c.now()) {
		c.logger.Warn("pipeline.confirm.session_expired",
			"session_id", sessionID, "expired_at", sess.ExpiresAt)
		return nil, common.Errorf(common.CodeSessionExpired,
			"upload session %s expired at %s", sessionID, sess.ExpiresAt.Format(time.RFC3339))
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	exists, err := c.store.Exists(checkCtx, sess.ObjectKey)
	cancel()
	if err != nil || !exists {
		if cErr := c.sessions.Create(ctx, sess); cErr != nil {
			c.logger.Warn("pipeline.confirm.session_restore_failed",
				"session_id", sessionID, "error", cErr)
		}
		if err != nil {
			return nil, common.NewAppError(common.CodeDirectTransferFailed, "verify stored object", err)
		}
		return nil, common.Errorf(common.CodeDirectTransferFailed,
			"object %s was never uploaded", sess.ObjectKey)
	}

	extraction, err := c.extractStored(ctx, sess)
	if err != nil {
		return nil, err
	}

	fileID, err := c.persistRecord(ctx, sess.UserID, sess.Filename, sess.ObjectKey, sess.FileSize, sess.ContentType)
	if err != nil {
		return nil, err
	}

	if sess.TransientFile != "" && c.transient != nil {
		// best effort; the provider expires transient files on its own
		if err := c.transient.DeleteTransient(ctx, sess.TransientFile); err != nil {
			c.logger.Warn("pipeline.confirm.transient_delete_failed",
				"session_id", sessionID, "handle", sess.TransientFile, "error", err)
		}
	}

	c.logger.Info("pipeline.confirm.ok",
		"session_id", sessionID,
		"file_id", fileID,
		"object_key", sess.ObjectKey,
	)
	return &ConfirmResult{
		FileID:    fileID,
		ObjectKey: sess.ObjectKey,
		Extracted: extraction,
	}, nil
}

// extractStored runs extraction against the archived object. Images go to
// the provider by pre-signed read URL; PDFs are fetched back, rasterized and
// compressed first, since the vision model consumes raster images only.
func (c *Coordinator) extractStored(ctx context.Context, sess *entity.UploadSession) (*llm.Extraction, error) {
	urlCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	readURL, err := c.store.IssueDownloadCredential(urlCtx, sess.ObjectKey, c.cfg.DownloadURLTTL)
	cancel()
	if err != nil {
		return nil, err
	}

	if !constants.IsPDF(sess.ContentType) {
		return c.extractor.ExtractInvoice(ctx, llm.ImageInput{URL: readURL})
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	raw, _, err := c.transport.Do(fetchCtx, http.MethodGet, readURL, nil, nil)
	cancelFetch()
	if err != nil {
		return nil, common.NewAppError(common.CodeDirectTransferFailed, "fetch stored pdf", err)
	}

	strat, err := c.raster.SelectStrategy(raw, pdf.StrategyOptions{
		MaxPages: c.cfg.MaxPDFPages,
		Render: pdf.RenderOptions{
			MaxWidth:  c.cfg.MaxImageWidth,
			MaxHeight: c.cfg.MaxImageHeight,
		},
	})
	if err != nil {
		return nil, err
	}
	pages := 1
	if strat.Strategy == pdf.StrategyLongImage {
		pages = strat.ProcessedPages
	}
	compressed, err := c.compress.Compress(strat.Data, imaging.CompressOptions{
		TargetBytes: c.cfg.TargetImageBytes * pages,
		MaxWidth:    c.cfg.MaxImageWidth,
		MaxHeight:   c.cfg.MaxImageHeight * pages,
	})
	if err != nil {
		return nil, err
	}
	return c.extractor.ExtractInvoice(ctx, llm.ImageInput{
		Data:        compressed.Data,
		ContentType: imaging.ContentTypeFor(imaging.FormatJPEG),
	})
}

// rawObjectKey keeps the original extension: the two-phase flow archives the
// file exactly as the client uploaded it.
func (c *Coordinator) rawObjectKey(userID uuid.UUID, originalName string) string {
	ext := constants.NormalizeExt(filepath.Ext(originalName))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s/%s.%s", c.cfg.KeyPrefix, userID, uuid.New(), ext)
}
