package pdf

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/imaging"
)

// Long-image defaults.
const (
	DefaultPageSpacing        = 24
	DefaultSeparatorThickness = 2
)

// LongImageOptions control the vertical multi-page composite.
type LongImageOptions struct {
	MaxPages    int
	Scale       float64
	MaxWidth    int
	PageSpacing int // px of gap between consecutive pages

	Separator          bool // draw a line centered in each gap
	SeparatorColor     color.Color
	SeparatorThickness int

	Format  string
	Quality float64
}

func (o *LongImageOptions) defaults() {
	if o.PageSpacing < 0 {
		o.PageSpacing = 0
	}
	if o.PageSpacing == 0 {
		o.PageSpacing = DefaultPageSpacing
	}
	if o.Separator {
		if o.SeparatorThickness <= 0 {
			o.SeparatorThickness = DefaultSeparatorThickness
		}
		if o.SeparatorColor == nil {
			o.SeparatorColor = color.RGBA{R: 0xD0, G: 0xD0, B: 0xD0, A: 0xFF}
		}
	}
	if o.Format == "" {
		o.Format = imaging.FormatJPEG
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = 0.85
	}
}

// LongImage is a single tall composite of vertically stacked pages.
type LongImage struct {
	Image          image.Image
	Data           []byte
	Width          int
	TotalHeight    int
	ProcessedPages int
}

// RenderLongImage renders up to MaxPages pages and stacks them into one tall
// image. Each page is horizontally centered within the widest rendered page;
// consecutive pages are separated by PageSpacing px, optionally bisected by a
// separator line centered in the gap. Individual page failures are skipped;
// the call fails only when no page renders.
func (r *Rasterizer) RenderLongImage(data []byte, opts LongImageOptions) (*LongImage, error) {
	opts.defaults()

	outcomes, err := r.RenderPages(data, opts.MaxPages, RenderOptions{
		Scale:    opts.Scale,
		MaxWidth: opts.MaxWidth,
		Format:   opts.Format,
		Quality:  opts.Quality,
	})
	if err != nil {
		return nil, err
	}
	pages := make([]*Page, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			pages = append(pages, o.Page)
		}
	}
	if len(pages) == 0 {
		return nil, common.Errorf(common.CodeRenderFailed, "no pages to stack")
	}

	canvas := StackPages(pages, opts)
	encoded, err := imaging.Encode(canvas, opts.Format, opts.Quality)
	if err != nil {
		return nil, common.NewAppError(common.CodeRenderFailed, "encode long image", err)
	}

	b := canvas.Bounds()
	li := &LongImage{
		Image:          canvas,
		Data:           encoded,
		Width:          b.Dx(),
		TotalHeight:    b.Dy(),
		ProcessedPages: len(pages),
	}
	r.logger.Info("pdf.long_image.ok",
		"pages", li.ProcessedPages,
		"width", li.Width,
		"total_height", li.TotalHeight,
		"bytes", len(encoded),
	)
	return li, nil
}

// StackPages composes already-rendered pages into one tall canvas on a white
// background. Exported separately so callers can stack pages they rendered
// themselves.
func StackPages(pages []*Page, opts LongImageOptions) *image.RGBA {
	opts.defaults()

	gap := opts.PageSpacing
	if opts.Separator {
		gap += opts.SeparatorThickness
	}
	maxW, totalH := 0, 0
	for _, p := range pages {
		if p.Width > maxW {
			maxW = p.Width
		}
		totalH += p.Height
	}
	totalH += gap * (len(pages) - 1)

	canvas := image.NewRGBA(image.Rect(0, 0, maxW, totalH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for i, p := range pages {
		x := (maxW - p.Width) / 2
		dst := image.Rect(x, y, x+p.Width, y+p.Height)
		draw.Draw(canvas, dst, p.Image, p.Image.Bounds().Min, draw.Src)
		y += p.Height
		if i == len(pages)-1 {
			break
		}
		y += opts.PageSpacing / 2
		if opts.Separator {
			line := image.Rect(0, y, maxW, y+opts.SeparatorThickness)
			draw.Draw(canvas, line, image.NewUniform(opts.SeparatorColor), image.Point{}, draw.Src)
			y += opts.SeparatorThickness
		}
		y += opts.PageSpacing - opts.PageSpacing/2
	}
	return canvas
}
