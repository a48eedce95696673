package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/invoicevault/invoicevault/internal/common"
)

// UploadTransient puts a short-lived file copy on the provider via the Files
// API and returns its handle.
func (c *Client) UploadTransient(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "vision"); err != nil {
		return "", common.WrapError(err, "write purpose field")
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(hdr)
	if err != nil {
		return "", common.WrapError(err, "create file part")
	}
	if _, err := part.Write(data); err != nil {
		return "", common.WrapError(err, "write file part")
	}
	if err := w.Close(); err != nil {
		return "", common.WrapError(err, "close multipart writer")
	}
	body := buf.Bytes()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/files"
	raw, _, err := c.http.Do(ctx, http.MethodPost, endpoint, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  w.FormDataContentType(),
	}, func() (io.Reader, error) {
		return bytes.NewReader(body), nil
	})
	if err != nil {
		c.logger.Error("llm.files.upload_failed", "filename", filename, "error", err)
		return "", common.NewAppError(common.CodeExtractionFailed, "upload transient file", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.ID == "" {
		return "", common.NewAppError(common.CodeExtractionFailed, "decode file upload response", err)
	}
	c.logger.Info("llm.files.upload_ok", "filename", filename, "handle", resp.ID, "bytes", len(data))
	return resp.ID, nil
}

// DeleteTransient removes a provider-side file copy. Best-effort cleanup;
// callers may ignore the error.
func (c *Client) DeleteTransient(ctx context.Context, handle string) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/files/" + handle
	_, _, err := c.http.Do(ctx, http.MethodDelete, endpoint, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, nil)
	if err != nil {
		c.logger.Warn("llm.files.delete_failed", "handle", handle, "error", err)
		return common.WrapError(err, "delete transient file")
	}
	return nil
}
