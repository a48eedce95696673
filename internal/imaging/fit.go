// Package imaging holds raster-image fitting, scaling and byte-budget
// compression for the upload pipeline.
package imaging

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// FitWithin returns dimensions scaled to fit within maxW x maxH while
// preserving aspect ratio. Shrink-only: the result never exceeds the input.
// A non-positive bound means "unconstrained" on that axis.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := FitScale(w, h, maxW, maxH)
	if scale >= 1 {
		return w, h
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// FitScale returns min(1, maxW/w, maxH/h). Never enlarges.
func FitScale(w, h, maxW, maxH int) float64 {
	scale := 1.0
	if maxW > 0 && w > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	return scale
}

// Scale resamples src to exactly w x h.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// ScaleToFit resamples src to fit within maxW x maxH, preserving aspect
// ratio. Returns src untouched when it already fits.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	return Scale(src, w, h)
}
