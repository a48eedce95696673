package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/llm"
)

// completionsServer mimics the chat/completions endpoint, returning the
// given message content. It also captures the request for inspection.
func completionsServer(t *testing.T, content string) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func testClient(baseURL string, lenient bool) *Client {
	return NewClient(Config{
		APIKey:      "sk-test",
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		MaxAttempts: 1,
		Lenient:     lenient,
	}, nil)
}

func TestExtractInvoiceStrictHappyPath(t *testing.T) {
	server, captured := completionsServer(t, `{
		"supplier_name": "ACME GmbH",
		"total_amount": "119.00",
		"tax_amount": "19.00",
		"currency_code": "EUR",
		"invoice_date": "2026-01-15"
	}`)

	ext, err := testClient(server.URL, false).ExtractInvoice(context.Background(), llm.ImageInput{
		Data:        []byte("fake-jpeg"),
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME GmbH", ext.Fields.SupplierName)
	assert.Equal(t, "119.00", ext.Fields.TotalAmount)
	assert.Equal(t, "EUR", ext.Fields.CurrencyCode)

	// inline bytes travel as a data URL in an image_url content part
	msgs := (*captured)["messages"].([]any)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,"))
	assert.Equal(t, "high", img["detail"])
}

func TestExtractInvoicePassesCallerURL(t *testing.T) {
	server, captured := completionsServer(t, `{
		"supplier_name": "ACME",
		"total_amount": "10.00",
		"currency_code": "EUR"
	}`)

	_, err := testClient(server.URL, false).ExtractInvoice(context.Background(), llm.ImageInput{
		URL: "https://store.example/presigned/abc.jpg",
	})
	require.NoError(t, err)

	msgs := (*captured)["messages"].([]any)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "https://store.example/presigned/abc.jpg", img["url"])
}

func TestExtractInvoiceRejectsEmptyInput(t *testing.T) {
	_, err := testClient("http://unused.invalid", false).ExtractInvoice(context.Background(), llm.ImageInput{})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
}

func TestExtractInvoiceStrictRejectsMessyPayload(t *testing.T) {
	server, _ := completionsServer(t, `{
		"vendor_name": "ACME",
		"total": 119.0,
		"currency": "eur"
	}`)

	_, err := testClient(server.URL, false).ExtractInvoice(context.Background(), llm.ImageInput{
		Data: []byte("fake-jpeg"),
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidExtractionFormat, common.CodeOf(err))
}

func TestExtractInvoiceLenientSanitizesMessyPayload(t *testing.T) {
	server, _ := completionsServer(t, `{
		"vendor_name": "ACME",
		"total": 119.5,
		"currency": "eur",
		"confidence": 0.99
	}`)

	ext, err := testClient(server.URL, true).ExtractInvoice(context.Background(), llm.ImageInput{
		Data: []byte("fake-jpeg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME", ext.Fields.SupplierName)
	assert.Equal(t, "119.5", ext.Fields.TotalAmount)
	assert.Equal(t, "EUR", ext.Fields.CurrencyCode)
}

func TestExtractInvoiceLenientStillRejectsHopelessPayload(t *testing.T) {
	server, _ := completionsServer(t, `{"total": 119.5}`)

	_, err := testClient(server.URL, true).ExtractInvoice(context.Background(), llm.ImageInput{
		Data: []byte("fake-jpeg"),
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidExtractionFormat, common.CodeOf(err))
}

func TestExtractInvoiceProviderErrorSurfacesAsExtractionFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	_, err := testClient(server.URL, false).ExtractInvoice(context.Background(), llm.ImageInput{
		Data: []byte("fake-jpeg"),
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
}

func TestExtractInvoiceNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	t.Cleanup(server.Close)

	_, err := testClient(server.URL, false).ExtractInvoice(context.Background(), llm.ImageInput{
		Data: []byte("fake-jpeg"),
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
}
