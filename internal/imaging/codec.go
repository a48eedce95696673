package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/invoicevault/invoicevault/internal/common"
)

// Output formats supported by Encode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// Decode parses an encoded raster image (JPEG or PNG).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError(common.CodeImageLoadFailed, "decode image", err)
	}
	return img, nil
}

// Encode serializes img in the given format. Quality is 0..1 and applies to
// JPEG only; PNG is lossless and ignores it.
func Encode(img image.Image, format string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, common.NewAppError(common.CodeCompressionFailed, "encode png", err)
		}
	case FormatJPEG, "", "jpg":
		q := int(quality * 100)
		if q < 1 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, common.NewAppError(common.CodeCompressionFailed, "encode jpeg", err)
		}
	default:
		return nil, common.Errorf(common.CodeCompressionFailed, "unsupported output format %q", format)
	}
	if buf.Len() == 0 {
		return nil, common.Errorf(common.CodeCompressionFailed, "encoder produced no output")
	}
	return buf.Bytes(), nil
}

// ContentTypeFor maps an output format to its MIME type.
func ContentTypeFor(format string) string {
	if strings.ToLower(format) == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}
