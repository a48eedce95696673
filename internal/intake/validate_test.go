package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicevault/invoicevault/internal/common"
)

func TestValidateAcceptsAllowedTypes(t *testing.T) {
	for _, ct := range []string{"application/pdf", "image/jpeg", "image/png", " IMAGE/PNG "} {
		err := Validate(FileInfo{Name: "invoice.pdf", Size: 2 * 1024 * 1024, ContentType: ct})
		assert.NoError(t, err, "content type %q should be accepted", ct)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	err := Validate(FileInfo{Name: "big.pdf", Size: 15 * 1024 * 1024, ContentType: "application/pdf"})
	require.Error(t, err)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(err))
	assert.Contains(t, err.Error(), "too large")
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	err := Validate(FileInfo{Name: "notes.txt", Size: 100, ContentType: "text/plain"})
	require.Error(t, err)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(err))
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	err := Validate(FileInfo{Name: "empty.png", Size: 0, ContentType: "image/png"})
	require.Error(t, err)
	assert.Equal(t, common.CodeValidationFailed, common.CodeOf(err))
}
