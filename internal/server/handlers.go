// Package server is the thin HTTP glue over the upload pipeline.
package server

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/pipeline"
)

// Handler contains the HTTP handlers for the upload API.
type Handler struct {
	coord *pipeline.Coordinator
}

func NewHandler(coord *pipeline.Coordinator) *Handler {
	return &Handler{coord: coord}
}

// HandleUpload handles POST /v1/uploads.
// Single-phase variant: the server proxies both transfers. Accepts a
// multipart form with a "file" field and a "user_id" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	userID, err := uuid.Parse(c.FormValue("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id must be a uuid"})
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}
	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read uploaded file"})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read uploaded file"})
	}

	res := h.coord.RunSingleFileUpload(c.Request().Context(), pipeline.File{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, userID, nil)

	if !res.Success {
		return mapPipelineError(c, res.Error)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"file_id":    res.FileID,
		"object_key": res.ObjectKey,
		"status":     constants.StatusCompleted,
		"extracted":  res.Extracted.Fields,
	})
}

type initRequest struct {
	UserID        string `json:"user_id"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	ContentType   string `json:"content_type"`
	TransientFile string `json:"transient_file,omitempty"`
}

// HandleInitSession handles POST /v1/uploads/sessions.
// Two-phase variant, phase one: issue a pre-signed credential and a session.
func (h *Handler) HandleInitSession(c echo.Context) error {
	var req initRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id must be a uuid"})
	}

	resp, err := h.coord.InitDirectUpload(c.Request().Context(), pipeline.InitRequest{
		UserID:        userID,
		Filename:      req.Filename,
		Size:          req.Size,
		ContentType:   req.ContentType,
		TransientFile: req.TransientFile,
	})
	if err != nil {
		return mapPipelineError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// HandleConfirmSession handles POST /v1/uploads/sessions/:id/confirm.
// Two-phase variant, phase two: the client reports the direct transfer done.
func (h *Handler) HandleConfirmSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session id must be a uuid"})
	}
	res, err := h.coord.ConfirmDirectUpload(c.Request().Context(), sessionID)
	if err != nil {
		return mapPipelineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"file_id":    res.FileID,
		"object_key": res.ObjectKey,
		"extracted":  res.Extracted.Fields,
	})
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// mapPipelineError translates pipeline error codes to HTTP statuses, keeping
// the code and stage-appropriate message visible for support.
func mapPipelineError(c echo.Context, err error) error {
	code := common.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case common.CodeValidationFailed:
		status = http.StatusBadRequest
	case common.CodeSessionNotFound:
		status = http.StatusNotFound
	case common.CodeSessionExpired:
		status = http.StatusGone
	case common.CodePDFLoadFailed, common.CodePageOutOfRange, common.CodeImageLoadFailed:
		status = http.StatusUnprocessableEntity
	case common.CodeDirectTransferFailed, common.CodeCredentialIssuanceFailed,
		common.CodeExtractionFailed, common.CodeInvalidExtractionFormat:
		status = http.StatusBadGateway
	}
	return c.JSON(status, echo.Map{
		"error": err.Error(),
		"code":  code,
	})
}
