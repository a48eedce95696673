package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
	"github.com/invoicevault/invoicevault/internal/imaging"
	"github.com/invoicevault/invoicevault/internal/llm"
	"github.com/invoicevault/invoicevault/internal/pdf"
	"github.com/invoicevault/invoicevault/internal/progress"
	"github.com/invoicevault/invoicevault/internal/session"
	"github.com/invoicevault/invoicevault/internal/storage"
)

// fakeArchive backs pre-signed credentials with a local httptest server.
// Every issued write credential points at /put/<key> on that server; what
// lands there is retrievable again through the download credential.
type fakeArchive struct {
	mu      sync.Mutex
	server  *httptest.Server
	objects map[string][]byte

	credentialErr error
	existsErr     error
	credCalls     int
	credHeaders   map[string]string // extra signed headers to attach
	lastPutHeader http.Header
}

func newFakeArchive(t *testing.T) *fakeArchive {
	t.Helper()
	fa := &fakeArchive{objects: make(map[string][]byte)}
	fa.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/put/"):]
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			fa.mu.Lock()
			fa.objects[key] = body
			fa.lastPutHeader = r.Header.Clone()
			fa.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			fa.mu.Lock()
			body, ok := fa.objects[key]
			fa.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(fa.server.Close)
	return fa
}

func (f *fakeArchive) IssueUploadCredential(_ context.Context, key, contentType string, ttl time.Duration) (*storage.UploadCredential, error) {
	f.mu.Lock()
	f.credCalls++
	f.mu.Unlock()
	if f.credentialErr != nil {
		return nil, f.credentialErr
	}
	return &storage.UploadCredential{
		URL:         f.server.URL + "/put/" + key,
		Method:      http.MethodPut,
		Headers:     f.credHeaders,
		ObjectKey:   key,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}

func (f *fakeArchive) IssueDownloadCredential(_ context.Context, key string, _ time.Duration) (string, error) {
	return f.server.URL + "/put/" + key, nil
}

func (f *fakeArchive) Put(_ context.Context, key, _ string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func (f *fakeArchive) Exists(_ context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeArchive) Metadata(_ context.Context, key string) (*storage.ObjectMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return &storage.ObjectMetadata{Size: int64(len(body))}, nil
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeArchive) stored(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

type fakeExtractor struct {
	mu     sync.Mutex
	calls  int
	inputs []llm.ImageInput
	err    error
}

func (f *fakeExtractor) ExtractInvoice(_ context.Context, in llm.ImageInput) (*llm.Extraction, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Extraction{
		Fields: llm.InvoiceFields{
			SupplierName: "ACME GmbH",
			TotalAmount:  "119.00",
			CurrencyCode: "EUR",
		},
	}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFiles struct {
	mu      sync.Mutex
	records []*entity.InvoiceFile
	err     error
}

func (f *fakeFiles) Create(_ context.Context, rec *entity.InvoiceFile) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id := uuid.New()
	rec.ID = id
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeFiles) GetByID(_ context.Context, id uuid.UUID) (*entity.InvoiceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeFiles) ListByUser(_ context.Context, userID uuid.UUID, _ int) ([]*entity.InvoiceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.InvoiceFile
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTransient struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeTransient) UploadTransient(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	return "file-abc", nil
}

func (f *fakeTransient) DeleteTransient(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, handle)
	return nil
}

// fixedPageDoc is a pdf.Document whose pages are all solid 200x300 rects.
type fixedPageDoc struct {
	pages int
}

func (d *fixedPageDoc) PageCount() int { return d.pages }

func (d *fixedPageDoc) RenderPage(page int, _ float64) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF})
		}
	}
	return img, nil
}

func (d *fixedPageDoc) Close() error { return nil }

func pdfRasterizer(pages int) *pdf.Rasterizer {
	return pdf.NewRasterizer(slog.Default(), pdf.WithOpener(func(data []byte) (pdf.Document, error) {
		return &fixedPageDoc{pages: pages}, nil
	}))
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xFF})
		}
	}
	data, err := imaging.Encode(img, imaging.FormatJPEG, 0.85)
	require.NoError(t, err)
	return data
}

type testEnv struct {
	coord     *Coordinator
	archive   *fakeArchive
	extractor *fakeExtractor
	files     *fakeFiles
	transient *fakeTransient
	sessions  *session.MemoryStore
	clock     *time.Time
}

func newTestEnv(t *testing.T, pdfPages int) *testEnv {
	t.Helper()
	now := time.Now()
	env := &testEnv{
		archive:   newFakeArchive(t),
		extractor: &fakeExtractor{},
		files:     &fakeFiles{},
		transient: &fakeTransient{},
		clock:     &now,
	}
	env.sessions = session.NewMemoryStore(nil, session.WithClock(func() time.Time { return *env.clock }))
	env.coord = NewCoordinator(Deps{
		Rasterizer: pdfRasterizer(pdfPages),
		Store:      env.archive,
		Extractor:  env.extractor,
		Transient:  env.transient,
		Files:      env.files,
		Sessions:   env.sessions,
	}, Config{MaxPDFPages: 3}, slog.Default())
	env.coord.now = func() time.Time { return *env.clock }
	return env
}

type update struct {
	status   constants.UploadStatus
	progress int
}

func collectProgress(updates *[]update, mu *sync.Mutex) progress.Callback {
	return func(status constants.UploadStatus, prog int, _ string) {
		mu.Lock()
		*updates = append(*updates, update{status, prog})
		mu.Unlock()
	}
}

func TestSingleFileUploadPDFLongImage(t *testing.T) {
	env := newTestEnv(t, 3)
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "invoice.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-fake"),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, pdf.StrategyLongImage, res.Strategy)
	assert.Equal(t, 3, res.PageCount)
	assert.NotEqual(t, uuid.Nil, res.FileID)
	require.NotNil(t, res.Extracted)
	assert.Equal(t, "ACME GmbH", res.Extracted.Fields.SupplierName)

	// PDFs are archived rasterized, under a .jpg key
	assert.Regexp(t, `^invoices/[0-9a-f-]+/[0-9a-f-]+\.jpg$`, res.ObjectKey)
	assert.NotEmpty(t, env.archive.stored(res.ObjectKey))
	assert.Equal(t, 1, env.extractor.callCount())

	// progress: monotonic, visits every stage, ends at COMPLETED 100
	last := -1
	seen := map[constants.UploadStatus]bool{}
	for _, u := range updates {
		require.GreaterOrEqual(t, u.progress, last)
		last = u.progress
		seen[u.status] = true
	}
	assert.Equal(t, 100, last)
	assert.Equal(t, constants.StatusCompleted, updates[len(updates)-1].status)
	for _, st := range []constants.UploadStatus{
		constants.StatusProcessingPDF,
		constants.StatusCompressingImage,
		constants.StatusUploadingToStore,
		constants.StatusAIProcessing,
		constants.StatusCompleted,
	} {
		assert.True(t, seen[st], "stage %s never reported", st)
	}

	// a record was persisted with the same key
	require.Len(t, env.files.records, 1)
	assert.Equal(t, res.ObjectKey, env.files.records[0].ObjectKey)
	assert.Equal(t, "invoice.pdf", env.files.records[0].OriginalName)
}

func TestSingleFileUploadSinglePagePDF(t *testing.T) {
	env := newTestEnv(t, 1)
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "invoice.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-fake"),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, pdf.StrategySinglePage, res.Strategy)
	assert.Equal(t, 1, res.PageCount)
	last := updates[len(updates)-1]
	assert.Equal(t, constants.StatusCompleted, last.status)
	assert.Equal(t, 100, last.progress)
}

func TestSingleFileUploadLongPDFFallsBackToFirstPage(t *testing.T) {
	env := newTestEnv(t, 5)

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "contract.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-fake"),
	}, uuid.New(), nil)

	require.NoError(t, res.Error)
	assert.Equal(t, pdf.StrategyFirstPage, res.Strategy)
	assert.Equal(t, 5, res.PageCount)
	assert.Equal(t, 1, env.extractor.callCount())
}

func TestSingleFileUploadOversizedFile(t *testing.T) {
	env := newTestEnv(t, 0)
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "huge.jpg",
		ContentType: "image/jpeg",
		Data:        bytes.Repeat([]byte{0xFF}, 15*1024*1024),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.Error(t, res.Error)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(res.Error))
	assert.Equal(t, 0, env.archive.credCalls)
	assert.Equal(t, 0, env.extractor.callCount())

	// at most one non-terminal update, at NOT_UPLOADED with progress 0
	require.LessOrEqual(t, len(updates), 2)
	assert.Equal(t, constants.StatusNotUploaded, updates[0].status)
	assert.Equal(t, 0, updates[0].progress)
	assert.Equal(t, constants.StatusFailed, updates[len(updates)-1].status)
}

func TestSingleFileUploadImageSkipsPDFStage(t *testing.T) {
	env := newTestEnv(t, 0)
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "receipt.jpg",
		ContentType: "image/jpeg",
		Data:        jpegBytes(t, 320, 240),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Empty(t, res.Strategy)
	for _, u := range updates {
		assert.NotEqual(t, constants.StatusProcessingPDF, u.status)
	}
}

func TestSingleFileUploadRejectsInvalidInputBeforeAnySideEffect(t *testing.T) {
	env := newTestEnv(t, 0)
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.Error(t, res.Error)
	assert.False(t, res.Success)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(res.Error))

	// no credential was issued, nothing stored, no model call, no record
	assert.Equal(t, 0, env.archive.credCalls)
	assert.Equal(t, 0, env.extractor.callCount())
	assert.Empty(t, env.files.records)

	// nothing ever left NOT_UPLOADED before the terminal FAILED
	for _, u := range updates[:len(updates)-1] {
		assert.Equal(t, constants.StatusNotUploaded, u.status)
	}
	assert.Equal(t, constants.StatusFailed, updates[len(updates)-1].status)
}

func TestSingleFileUploadCredentialFailureStopsBeforeExtraction(t *testing.T) {
	env := newTestEnv(t, 0)
	env.archive.credentialErr = common.Errorf(common.CodeCredentialIssuanceFailed, "store unreachable")
	var mu sync.Mutex
	var updates []update

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "receipt.jpg",
		ContentType: "image/jpeg",
		Data:        jpegBytes(t, 320, 240),
	}, uuid.New(), collectProgress(&updates, &mu))

	require.Error(t, res.Error)
	assert.Equal(t, common.CodeCredentialIssuanceFailed, common.CodeOf(res.Error))
	assert.Equal(t, 0, env.extractor.callCount(), "no AI call after a store failure")
	assert.Empty(t, env.files.records)

	final := updates[len(updates)-1]
	assert.Equal(t, constants.StatusFailed, final.status)
	assert.Equal(t, 35, final.progress, "progress freezes where the store stage began")
}

func TestSingleFileUploadExtractionFailure(t *testing.T) {
	env := newTestEnv(t, 0)
	env.extractor.err = common.Errorf(common.CodeExtractionFailed, "model timeout")

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "receipt.jpg",
		ContentType: "image/jpeg",
		Data:        jpegBytes(t, 320, 240),
	}, uuid.New(), nil)

	require.Error(t, res.Error)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(res.Error))
	// the object was already stored; failure surfaces after the transfer
	assert.NotEmpty(t, env.archive.objects)
	assert.Empty(t, env.files.records)
}

func TestSingleFileUploadForwardsSignedHeaders(t *testing.T) {
	env := newTestEnv(t, 0)
	env.archive.credHeaders = map[string]string{
		"X-Amz-Server-Side-Encryption": "AES256",
		"X-Amz-Meta-Origin":            "pipeline",
	}

	res := env.coord.RunSingleFileUpload(context.Background(), File{
		Name:        "receipt.jpg",
		ContentType: "image/jpeg",
		Data:        jpegBytes(t, 200, 200),
	}, uuid.New(), nil)
	require.NoError(t, res.Error)

	got := env.archive.lastPutHeader
	require.NotNil(t, got)
	assert.Equal(t, "AES256", got.Get("X-Amz-Server-Side-Encryption"))
	assert.Equal(t, "pipeline", got.Get("X-Amz-Meta-Origin"))
	assert.Equal(t, "image/jpeg", got.Get("Content-Type"))
}

func TestBatchUploadMixedOutcomes(t *testing.T) {
	env := newTestEnv(t, 2)
	files := []File{
		{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-a")},
		{Name: "b.txt", ContentType: "text/plain", Data: []byte("nope")},
		{Name: "c.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 200, 200)},
		{Name: "d.png", ContentType: "image/png", Data: []byte("not a png")},
	}

	var mu sync.Mutex
	var summaries []progress.Summary
	res := env.coord.RunBatchUpload(context.Background(), files, uuid.New(), nil,
		func(s progress.Summary) {
			mu.Lock()
			summaries = append(summaries, s)
			mu.Unlock()
		})

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	require.Len(t, res.Results, 4)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.True(t, res.Results[2].Success)
	assert.False(t, res.Results[3].Success)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(res.Results[1].Error))
	assert.Equal(t, common.CodeImageLoadFailed, common.CodeOf(res.Results[3].Error))

	require.NotEmpty(t, summaries)
	final := summaries[len(summaries)-1]
	assert.Equal(t, 4, final.Total)
	assert.Equal(t, 2, final.CompletedCount)
	assert.Equal(t, 2, final.FailedCount)
	assert.Equal(t, 0, final.ProcessingCount)
}

func TestBatchUploadEmptyInput(t *testing.T) {
	env := newTestEnv(t, 0)
	res := env.coord.RunBatchUpload(context.Background(), nil, uuid.New(), nil, nil)
	assert.Empty(t, res.Results)
	assert.Zero(t, res.SuccessCount)
	assert.Zero(t, res.FailureCount)
}
