package pdf

import "github.com/invoicevault/invoicevault/internal/imaging"

// Strategy names the rasterization policy chosen for a PDF.
type Strategy string

const (
	// StrategySinglePage renders the document's only page.
	StrategySinglePage Strategy = "single-page"
	// StrategyLongImage stacks every page into one tall composite.
	StrategyLongImage Strategy = "long-image"
	// StrategyFirstPage renders page 1 only. Used for documents beyond the
	// page limit: invoices front-load their totals, so dropping trailing
	// pages is acceptable information loss for extraction.
	StrategyFirstPage Strategy = "first-page"
)

// StrategyOptions configure the strategy selector.
type StrategyOptions struct {
	MaxPages  int
	Render    RenderOptions
	LongImage LongImageOptions
}

// StrategyResult is the rasterized output plus what policy produced it.
type StrategyResult struct {
	Data           []byte
	ContentType    string
	Strategy       Strategy
	PageCount      int
	SelectedPage   int // set for single-page and first-page
	ProcessedPages int
	Width          int
	Height         int
}

// SelectStrategy picks and executes the rasterization policy for a PDF:
// one page renders alone, 2..MaxPages pages become a long-image composite,
// and anything longer falls back to page 1 only.
func (r *Rasterizer) SelectStrategy(data []byte, opts StrategyOptions) (*StrategyResult, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}
	count, err := r.PageCount(data)
	if err != nil {
		return nil, err
	}

	switch {
	case count <= 1:
		page, err := r.RenderPage(data, 1, opts.Render)
		if err != nil {
			return nil, err
		}
		return &StrategyResult{
			Data:           page.Data,
			ContentType:    imaging.ContentTypeFor(opts.Render.Format),
			Strategy:       StrategySinglePage,
			PageCount:      count,
			SelectedPage:   1,
			ProcessedPages: 1,
			Width:          page.Width,
			Height:         page.Height,
		}, nil

	case count <= opts.MaxPages:
		li := opts.LongImage
		li.MaxPages = opts.MaxPages
		if li.Scale == 0 {
			li.Scale = opts.Render.Scale
		}
		if li.MaxWidth == 0 {
			li.MaxWidth = opts.Render.MaxWidth
		}
		long, err := r.RenderLongImage(data, li)
		if err != nil {
			return nil, err
		}
		return &StrategyResult{
			Data:           long.Data,
			ContentType:    imaging.ContentTypeFor(li.Format),
			Strategy:       StrategyLongImage,
			PageCount:      count,
			ProcessedPages: long.ProcessedPages,
			Width:          long.Width,
			Height:         long.TotalHeight,
		}, nil

	default:
		r.logger.Info("pdf.strategy.first_page_fallback",
			"page_count", count, "max_pages", opts.MaxPages)
		page, err := r.RenderPage(data, 1, opts.Render)
		if err != nil {
			return nil, err
		}
		return &StrategyResult{
			Data:           page.Data,
			ContentType:    imaging.ContentTypeFor(opts.Render.Format),
			Strategy:       StrategyFirstPage,
			PageCount:      count,
			SelectedPage:   1,
			ProcessedPages: 1,
			Width:          page.Width,
			Height:         page.Height,
		}, nil
	}
}
