// Package pdf rasterizes PDF files into images suitable for AI vision
// consumption and archival.
package pdf

import (
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/invoicevault/invoicevault/internal/common"
)

// Document is an open PDF container. Pages are 1-based at this boundary.
type Document interface {
	PageCount() int
	// RenderPage rasterizes one page at the given scale, where 1.0 means the
	// PDF's native 72 DPI.
	RenderPage(page int, scale float64) (image.Image, error)
	Close() error
}

// OpenFunc opens raw PDF bytes into a Document. The production opener is
// backed by MuPDF via go-fitz; tests substitute their own.
type OpenFunc func(data []byte) (Document, error)

// OpenFitz opens a PDF with MuPDF.
func OpenFitz(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, common.NewAppError(common.CodePDFLoadFailed, "open pdf", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(page int, scale float64) (image.Image, error) {
	if scale <= 0 {
		scale = 1.0
	}
	// go-fitz pages are 0-based; scale 1.0 corresponds to 72 DPI.
	img, err := d.doc.ImageDPI(page-1, 72.0*scale)
	if err != nil {
		return nil, common.NewAppError(common.CodeRenderFailed, "render page", err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
