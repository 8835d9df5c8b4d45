package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"casegen/internal/ingestion"
	"casegen/internal/storage"
	"casegen/web/components"

	"github.com/labstack/echo/v4"
)

// BatchHandler handles bulk upload requests
type BatchHandler struct {
	ingester       *ingestion.Ingester
	repo           *storage.BatchRepository
	maxUploadBytes int64
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(ingester *ingestion.Ingester, repo *storage.BatchRepository, maxUploadBytes int64) *BatchHandler {
	return &BatchHandler{
		ingester:       ingester,
		repo:           repo,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles story file upload
// POST /api/batches
func (h *BatchHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)

	// Get uploaded files
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.failed(c, http.StatusRequestEntityTooLarge, "upload exceeds " + strconv.FormatInt(h.maxUploadBytes, 10) + " bytes")
		}
		return h.failed(c, http.StatusBadRequest, "failed to parse form")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return h.failed(c, http.StatusBadRequest, "no files uploaded")
	}

	var files []ingestion.File
	for _, fh := range headers {
		if !ingestion.IsSupported(fh.Filename) {
			return h.failed(c, http.StatusBadRequest, "unsupported file type: " + fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return h.failed(c, http.StatusInternalServerError, "failed to open file")
		}
		defer f.Close()

		files = append(files, ingestion.File{Name: fh.Filename, Reader: f})
	}

	batch, err := h.ingester.Ingest(ctx, files)
	if err != nil {
		if errors.Is(err, ingestion.ErrNoStories) || errors.Is(err, ingestion.ErrUnsupportedFileType) {
			return h.failed(c, http.StatusBadRequest, err.Error())
		}
		return h.failed(c, http.StatusUnprocessableEntity, err.Error())
	}

	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/upload")
	}
	return c.JSON(http.StatusAccepted, batch)
}

// List returns recent batches
// GET /api/batches
func (h *BatchHandler) List(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	batches, err := h.repo.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, batches)
}

// Get returns one batch with its per-file aggregates
// GET /api/batches/:id
func (h *BatchHandler) Get(c echo.Context) error {
	batch, err := h.repo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if batch == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "batch not found"})
	}
	return c.JSON(http.StatusOK, batch)
}

// UploadPage renders the bulk upload page
func (h *BatchHandler) UploadPage(c echo.Context) error {
	batches, err := h.repo.List(c.Request().Context(), 10)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return render(c, components.Upload(batches, ingestion.SupportedExtensions, ""))
}

// failed answers an upload error. Browser form posts get the upload page
// back with the message.
func (h *BatchHandler) failed(c echo.Context, status int, msg string) error {
	if !wantsHTML(c) {
		return c.JSON(status, map[string]string{"error": msg})
	}
	batches, err := h.repo.List(c.Request().Context(), 10)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return renderStatus(c, status, components.Upload(batches, ingestion.SupportedExtensions, msg))
}
