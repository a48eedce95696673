package constants

import "strings"

// MaxUploadBytes is the largest file accepted for upload.
const MaxUploadBytes = 10 * 1024 * 1024

// AllowedMIMETypes holds the MIME types accepted for invoice uploads.
var AllowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// AllowedExtensions holds the default allowed file extensions for invoice uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// IsPDF reports whether the declared MIME type is a PDF container.
func IsPDF(mimeType string) bool {
	return strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf")
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
