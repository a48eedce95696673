// Package intake validates user-selected files before any byte moves.
package intake

import (
	"fmt"
	"strings"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
)

// FileInfo is the declared shape of a user-selected file. Only declared
// metadata is inspected here; content sniffing is not this package's job.
type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// Validate checks the declared MIME type against the allow-list and the
// declared size against the upload limit. Pure function, no I/O.
func Validate(f FileInfo) error {
	if f.Size > constants.MaxUploadBytes {
		return common.NewAppError(common.CodeValidationFailed,
			fmt.Sprintf("file is too large: %d bytes exceeds the %d MB limit",
				f.Size, constants.MaxUploadBytes/(1024*1024)), nil)
	}
	if f.Size <= 0 {
		return common.NewAppError(common.CodeValidationFailed, "file is empty", nil)
	}
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if _, ok := constants.AllowedMIMETypes[ct]; !ok {
		return common.NewAppError(common.CodeValidationFailed,
			fmt.Sprintf("unsupported file type %q: only PDF, JPEG and PNG are accepted", f.ContentType), nil)
	}
	return nil
}
