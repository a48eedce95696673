package pdf

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/imaging"
)

// RenderOptions control how a single page is rasterized and encoded.
type RenderOptions struct {
	Scale     float64 // render scale, 1.0 = native 72 DPI; default 2.0
	MaxWidth  int     // fit bound, shrink-only
	MaxHeight int
	Format    string  // imaging.FormatJPEG (default) or imaging.FormatPNG
	Quality   float64 // 0..1, JPEG only; default 0.85
}

func (o *RenderOptions) defaults() {
	if o.Scale <= 0 {
		o.Scale = 2.0
	}
	if o.Format == "" {
		o.Format = imaging.FormatJPEG
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = 0.85
	}
}

// Page is one rendered, encoded PDF page.
type Page struct {
	Number int
	Image  image.Image
	Data   []byte
	Width  int
	Height int
}

// PageOutcome reports a single page's render attempt inside a batch.
type PageOutcome struct {
	Number int
	Page   *Page
	Err    error
}

// Rasterizer renders PDF pages through a pluggable document opener.
type Rasterizer struct {
	open   OpenFunc
	logger *slog.Logger
}

type Option func(*Rasterizer)

// WithOpener substitutes the document opener. Used by tests.
func WithOpener(open OpenFunc) Option {
	return func(r *Rasterizer) {
		if open != nil {
			r.open = open
		}
	}
}

func NewRasterizer(logger *slog.Logger, opts ...Option) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rasterizer{open: OpenFitz, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// PageCount opens the PDF container and reports its page count.
func (r *Rasterizer) PageCount(data []byte) (int, error) {
	doc, err := r.open(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.PageCount(), nil
}

// RenderPage renders exactly one page (1-based), fit within the option
// bounds, encoded in the requested format.
func (r *Rasterizer) RenderPage(data []byte, page int, opts RenderOptions) (*Page, error) {
	doc, err := r.open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return r.renderOne(doc, page, opts)
}

func (r *Rasterizer) renderOne(doc Document, page int, opts RenderOptions) (*Page, error) {
	opts.defaults()
	n := doc.PageCount()
	if page < 1 || page > n {
		return nil, common.Errorf(common.CodePageOutOfRange,
			"page %d out of range [1, %d]", page, n)
	}
	img, err := doc.RenderPage(page, opts.Scale)
	if err != nil {
		return nil, common.NewAppError(common.CodeRenderFailed,
			fmt.Sprintf("render page %d", page), err)
	}
	img = imaging.ScaleToFit(img, opts.MaxWidth, opts.MaxHeight)
	encoded, err := imaging.Encode(img, opts.Format, opts.Quality)
	if err != nil {
		return nil, common.NewAppError(common.CodeRenderFailed,
			fmt.Sprintf("encode page %d", page), err)
	}
	b := img.Bounds()
	return &Page{
		Number: page,
		Image:  img,
		Data:   encoded,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// RenderPages renders up to maxPages pages independently. A single page's
// failure is logged and recorded, not fatal; the call errors only when zero
// pages render successfully. The outcome list always covers every attempted
// page in order.
func (r *Rasterizer) RenderPages(data []byte, maxPages int, opts RenderOptions) ([]PageOutcome, error) {
	doc, err := r.open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.PageCount()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	outcomes := make([]PageOutcome, 0, n)
	succeeded := 0
	for page := 1; page <= n; page++ {
		p, err := r.renderOne(doc, page, opts)
		if err != nil {
			r.logger.Warn("pdf.render_pages.page_failed", "page", page, "error", err)
			outcomes = append(outcomes, PageOutcome{Number: page, Err: err})
			continue
		}
		outcomes = append(outcomes, PageOutcome{Number: page, Page: p})
		succeeded++
	}
	if succeeded == 0 {
		return outcomes, common.Errorf(common.CodeRenderFailed,
			"no pages rendered successfully out of %d", n)
	}
	return outcomes, nil
}
