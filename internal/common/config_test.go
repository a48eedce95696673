package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "invoices", cfg.Storage.KeyPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Storage.UploadURLTTL)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.Pipeline.MaxPDFPages)
	assert.Equal(t, 1024*1024, cfg.Pipeline.TargetImageBytes)
	assert.Equal(t, 3, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PIPELINE_MAX_PDF_PAGES", "5")
	t.Setenv("UPLOAD_SESSION_TTL", "10m")
	t.Setenv("S3_BUCKET", "invoices-test")
	t.Setenv("PIPELINE_TARGET_IMAGE_BYTES", "524288")

	cfg := LoadConfig()
	assert.Equal(t, 5, cfg.Pipeline.MaxPDFPages)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "invoices-test", cfg.Storage.Bucket)
	assert.Equal(t, 524288, cfg.Pipeline.TargetImageBytes)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PIPELINE_MAX_PDF_PAGES", "many")
	t.Setenv("UPLOAD_SESSION_TTL", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 3, cfg.Pipeline.MaxPDFPages)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestValidateRequiresCoreSettings(t *testing.T) {
	cfg := &Config{}
	cfg.Server.HTTPAddr = ":8080"

	err := cfg.Validate()
	require.Error(t, err)

	cfg.Database.DSN = "postgres://localhost/invoicevault"
	require.Error(t, cfg.Validate())

	cfg.Storage.Bucket = "invoices"
	require.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}
