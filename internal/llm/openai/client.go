package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/llm"
)

// ExtractInvoice implements llm.InvoiceExtractor using a vision-capable
// chat/completions call. The invoice image goes in as an image_url content
// part: either the caller's pre-signed URL or the inline bytes as a data URL.
func (c *Client) ExtractInvoice(ctx context.Context, in llm.ImageInput) (*llm.Extraction, error) {
	rid := uuid.New().String()
	start := time.Now()

	imageURL := in.URL
	if imageURL == "" {
		if len(in.Data) == 0 {
			return nil, common.Errorf(common.CodeExtractionFailed, "no image data or url provided")
		}
		ct := in.ContentType
		if ct == "" {
			ct = "image/jpeg"
		}
		imageURL = "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(in.Data)
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"inline_bytes", len(in.Data),
		"has_url", in.URL != "",
	)

	schema := llm.BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt + "\n\nJSON Schema:\n" + mustJSON(schema)},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": "Extract the structured invoice fields from this invoice image. Return ONLY JSON that matches the provided schema."},
					{"type": "image_url", "image_url": map[string]any{"url": imageURL, "detail": "high"}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := c.http.PostJSON(ctx, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, common.NewAppError(common.CodeExtractionFailed, "extraction call failed", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, common.NewAppError(common.CodeExtractionFailed, "decode provider response", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return nil, common.Errorf(common.CodeExtractionFailed, "no choices in provider response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.Lenient {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(content))
			return nil, common.NewAppError(common.CodeInvalidExtractionFormat, "schema validation failed", err)
		}
		cleaned, applied, sErr := llm.SanitizeInvoiceJSON(content)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return nil, common.NewAppError(common.CodeInvalidExtractionFormat, "sanitize payload", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned))
			return nil, common.NewAppError(common.CodeInvalidExtractionFormat, "schema validation failed", vErr)
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "applied", applied)
		content = cleaned
	}

	var fields llm.InvoiceFields
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, common.NewAppError(common.CodeInvalidExtractionFormat, "unmarshal fields", err)
	}
	if err := llm.ValidateFields(fields); err != nil {
		c.logger.Error("llm.extract.field_validation_failed", "req_id", rid, "error", err)
		return nil, err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"supplier", fields.SupplierName,
		"total", fields.TotalAmount,
		"currency", fields.CurrencyCode,
		"invoice_date", fields.InvoiceDate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &llm.Extraction{Fields: fields, Raw: content}, nil
}

const systemPrompt = "You are an invoice parser. Return ONLY JSON that matches the JSON Schema provided. " +
	"Use ISO-8601 dates (YYYY-MM-DD). Currency must be a 3-letter ISO 4217 code. " +
	"Amounts are non-negative decimal strings without currency symbols or thousands separators. " +
	"tax_rate is a percentage without the % sign. " +
	"Never output null. If a field is not present on the invoice, omit it."

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
