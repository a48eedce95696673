package common

import (
	"errors"
	"fmt"
)

// Error codes for every failure class the upload pipeline can produce.
// Stable strings: they are logged, surfaced to clients, and matched in tests.
const (
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodePDFLoadFailed            = "PDF_LOAD_FAILED"
	CodePageOutOfRange           = "PAGE_OUT_OF_RANGE"
	CodeRenderFailed             = "RENDER_FAILED"
	CodeCompressionFailed        = "COMPRESSION_FAILED"
	CodeImageLoadFailed          = "IMAGE_LOAD_FAILED"
	CodeCredentialIssuanceFailed = "CREDENTIAL_ISSUANCE_FAILED"
	CodeDirectTransferFailed     = "DIRECT_TRANSFER_FAILED"
	CodeSessionNotFound          = "SESSION_NOT_FOUND"
	CodeSessionExpired           = "SESSION_EXPIRED"
	CodeExtractionFailed         = "EXTRACTION_FAILED"
	CodeInvalidExtractionFormat  = "INVALID_EXTRACTION_FORMAT"
	CodeRecordPersistenceFailed  = "RECORD_PERSISTENCE_FAILED"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds a coded error; cause may be nil.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func Errorf(code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the error code carried by err, or "" if err carries none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
