// Package pipeline orchestrates the two-destination upload flow: archive
// store for long-term keeping, AI provider for field extraction.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
	"github.com/invoicevault/invoicevault/internal/httpx"
	"github.com/invoicevault/invoicevault/internal/imaging"
	"github.com/invoicevault/invoicevault/internal/intake"
	"github.com/invoicevault/invoicevault/internal/llm"
	"github.com/invoicevault/invoicevault/internal/pdf"
	"github.com/invoicevault/invoicevault/internal/progress"
	"github.com/invoicevault/invoicevault/internal/repository"
	"github.com/invoicevault/invoicevault/internal/session"
	"github.com/invoicevault/invoicevault/internal/storage"
)

// Config tunes the coordinator. Zero values fall back to the defaults below.
type Config struct {
	MaxPDFPages      int
	TargetImageBytes int
	MaxImageWidth    int
	MaxImageHeight   int
	KeyPrefix        string

	UploadURLTTL   time.Duration // write-credential validity, ~15 min
	DownloadURLTTL time.Duration
	SessionTTL     time.Duration // two-phase session validity, ~30 min
	UploadTimeout  time.Duration // direct store transfer
	APITimeout     time.Duration // credential and confirm-side calls

	BatchConcurrency int
}

func (c *Config) defaults() {
	if c.MaxPDFPages <= 0 {
		c.MaxPDFPages = 3
	}
	if c.TargetImageBytes <= 0 {
		c.TargetImageBytes = imaging.DefaultReferenceBudget
	}
	if c.MaxImageWidth <= 0 {
		c.MaxImageWidth = 1600
	}
	if c.MaxImageHeight <= 0 {
		c.MaxImageHeight = 2200
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "invoices"
	}
	if c.UploadURLTTL <= 0 {
		c.UploadURLTTL = 15 * time.Minute
	}
	if c.DownloadURLTTL <= 0 {
		c.DownloadURLTTL = 15 * time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 5 * time.Minute
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 30 * time.Second
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 3
	}
}

// File is one raw user-selected file entering the pipeline.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the outcome of one file's pipeline run.
type Result struct {
	Success   bool
	FileID    uuid.UUID
	ObjectKey string
	Extracted *llm.Extraction

	Strategy  pdf.Strategy // informational, PDFs only
	PageCount int

	Error error
}

// Coordinator drives one file end to end through the six-stage machine.
// Collaborators are injected once at construction; there is no lazy client
// setup and no package-level state.
type Coordinator struct {
	raster    *pdf.Rasterizer
	compress  *imaging.Compressor
	store     storage.ArchiveStore
	extractor llm.InvoiceExtractor
	transient llm.TransientFileStore // optional
	files     repository.InvoiceFileRepository
	sessions  session.Store
	transport *httpx.Client
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Rasterizer *pdf.Rasterizer
	Compressor *imaging.Compressor
	Store      storage.ArchiveStore
	Extractor  llm.InvoiceExtractor
	Transient  llm.TransientFileStore
	Files      repository.InvoiceFileRepository
	Sessions   session.Store
	Transport  *httpx.Client
}

func NewCoordinator(deps Deps, cfg Config, logger *slog.Logger) *Coordinator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		raster:    deps.Rasterizer,
		compress:  deps.Compressor,
		store:     deps.Store,
		extractor: deps.Extractor,
		transient: deps.Transient,
		files:     deps.Files,
		sessions:  deps.Sessions,
		transport: deps.Transport,
		cfg:       cfg,
		logger:    logger,
	}
	if c.raster == nil {
		c.raster = pdf.NewRasterizer(logger)
	}
	if c.compress == nil {
		c.compress = imaging.NewCompressor(logger)
	}
	if c.transport == nil {
		c.transport = httpx.NewClient(cfg.UploadTimeout, httpx.DefaultMaxAttempts, logger)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// RunSingleFileUpload runs one file through intake, optional rasterization,
// compression, the store transfer and extraction. onProgress may be nil; when
// set it is called any number of times, ending with COMPLETED or FAILED.
// The first failure aborts the remaining stages; there is no retry here.
func (c *Coordinator) RunSingleFileUpload(ctx context.Context, file File, userID uuid.UUID, onProgress progress.Callback) *Result {
	tracker := progress.NewTracker(file.Name, onProgress)
	res := &Result{}

	fail := func(err error) *Result {
		c.logger.Error("pipeline.failed",
			"file", file.Name,
			"user_id", userID,
			"code", common.CodeOf(err),
			"error", err,
		)
		tracker.Fail(err.Error())
		res.Error = err
		return res
	}

	// Stage 1: intake. Invalid input never leaves NOT_UPLOADED.
	tracker.Stage(constants.StatusNotUploaded, 0, "validating")
	if err := intake.Validate(intake.FileInfo{
		Name:        file.Name,
		Size:        int64(len(file.Data)),
		ContentType: file.ContentType,
	}); err != nil {
		return fail(err)
	}

	working := file.Data
	contentType := file.ContentType
	compositePages := 1

	// Stage 2: rasterize, PDF inputs only.
	if constants.IsPDF(file.ContentType) {
		tracker.Stage(constants.StatusProcessingPDF, 0, "rasterizing pdf")
		strat, err := c.raster.SelectStrategy(file.Data, pdf.StrategyOptions{
			MaxPages: c.cfg.MaxPDFPages,
			Render: pdf.RenderOptions{
				MaxWidth:  c.cfg.MaxImageWidth,
				MaxHeight: c.cfg.MaxImageHeight,
			},
		})
		if err != nil {
			return fail(err)
		}
		working = strat.Data
		contentType = strat.ContentType
		res.Strategy = strat.Strategy
		res.PageCount = strat.PageCount
		if strat.Strategy == pdf.StrategyLongImage {
			compositePages = strat.ProcessedPages
		}
		tracker.Stage(constants.StatusProcessingPDF, 100,
			fmt.Sprintf("rasterized with %s strategy", strat.Strategy))
	}

	// Stage 3: compress. A multi-page composite legitimately needs a larger
	// budget, so the byte and height budgets scale with page count.
	tracker.Stage(constants.StatusCompressingImage, 0, "compressing image")
	compressed, err := c.compress.Compress(working, imaging.CompressOptions{
		TargetBytes: c.cfg.TargetImageBytes * compositePages,
		MaxWidth:    c.cfg.MaxImageWidth,
		MaxHeight:   c.cfg.MaxImageHeight * compositePages,
	})
	if err != nil {
		return fail(err)
	}
	working = compressed.Data
	contentType = imaging.ContentTypeFor(imaging.FormatJPEG)
	tracker.Stage(constants.StatusCompressingImage, 100, "image compressed")

	// Stage 4: store transfer through a scoped write credential.
	tracker.Stage(constants.StatusUploadingToStore, 0, "uploading to archive store")
	key := c.objectKey(userID, file.Name)
	credCtx, cancelCred := context.WithTimeout(ctx, c.cfg.APITimeout)
	cred, err := c.store.IssueUploadCredential(credCtx, key, contentType, c.cfg.UploadURLTTL)
	cancelCred()
	if err != nil {
		return fail(err)
	}
	if err := c.uploadWithCredential(ctx, cred, working); err != nil {
		return fail(err)
	}
	res.ObjectKey = key
	tracker.Stage(constants.StatusUploadingToStore, 100, "stored")

	// Stage 5: extraction on the compressed image we already hold.
	tracker.Stage(constants.StatusAIProcessing, 0, "extracting invoice fields")
	extraction, err := c.extractor.ExtractInvoice(ctx, llm.ImageInput{
		Data:        working,
		ContentType: contentType,
	})
	if err != nil {
		return fail(err)
	}
	res.Extracted = extraction

	// Stage 6: persist the file record, then resolve.
	fileID, err := c.persistRecord(ctx, userID, file.Name, key, int64(len(working)), contentType)
	if err != nil {
		return fail(err)
	}
	res.FileID = fileID
	res.Success = true
	tracker.Complete("upload complete")
	c.logger.Info("pipeline.ok",
		"file", file.Name,
		"user_id", userID,
		"file_id", fileID,
		"object_key", key,
		"strategy", res.Strategy,
		"pages", res.PageCount,
	)
	return res
}

// uploadWithCredential performs the direct transfer the credential permits.
func (c *Coordinator) uploadWithCredential(ctx context.Context, cred *storage.UploadCredential, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	method := cred.Method
	if method == "" {
		method = http.MethodPut
	}
	// headers signed into the credential must travel with the request, or an
	// S3-class store rejects the signature
	headers := make(map[string]string, len(cred.Headers)+1)
	for k, v := range cred.Headers {
		headers[k] = v
	}
	if cred.ContentType != "" {
		headers["Content-Type"] = cred.ContentType
	}
	_, _, err := c.transport.Do(ctx, method, cred.URL, headers, func() (io.Reader, error) {
		return bytes.NewReader(body), nil
	})
	if err != nil {
		return common.NewAppError(common.CodeDirectTransferFailed, "direct store transfer", err)
	}
	return nil
}

func (c *Coordinator) persistRecord(ctx context.Context, userID uuid.UUID, originalName, key string, size int64, contentType string) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()
	fileID, err := c.files.Create(ctx, &entity.InvoiceFile{
		UserID:       userID,
		OriginalName: originalName,
		StoredName:   filepath.Base(key),
		ObjectKey:    key,
		FileSize:     size,
		ContentType:  contentType,
		UploadedAt:   c.now().UTC(),
	})
	if err != nil {
		if common.CodeOf(err) == "" {
			err = common.NewAppError(common.CodeRecordPersistenceFailed, "persist file record", err)
		}
		return uuid.Nil, err
	}
	return fileID, nil
}

func (c *Coordinator) objectKey(userID uuid.UUID, originalName string) string {
	ext := constants.NormalizeExt(filepath.Ext(originalName))
	if ext == "" || ext == "pdf" {
		// rasterized PDFs are archived as JPEG
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s/%s.%s", c.cfg.KeyPrefix, userID, uuid.New(), ext)
}
