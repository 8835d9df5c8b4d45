package handlers

import (
	"net/http"
	"strconv"

	"casegen/internal/export"
	"casegen/internal/models"
	"casegen/internal/storage"
	"casegen/web/components"

	"github.com/labstack/echo/v4"
)

// JobHandler はジョブ履歴APIのハンドラー
type JobHandler struct {
	repo *storage.JobRepository
}

// NewJobHandler は新しいJobHandlerを作成
func NewJobHandler(repo *storage.JobRepository) *JobHandler {
	return &JobHandler{repo: repo}
}

// List はジョブ一覧を取得
func (h *JobHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	status := c.QueryParam("status")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var jobs []models.Job
	var err error

	if status != "" {
		jobs, err = h.repo.ListByStatus(ctx, models.JobStatus(status), limit)
	} else {
		jobs, err = h.repo.ListRecent(ctx, limit)
	}

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, jobs)
}

// Get はジョブを取得
func (h *JobHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, job)
}

// Stats はジョブ統計を取得
func (h *JobHandler) Stats(c echo.Context) error {
	stats, err := h.repo.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, stats)
}

// Delete はジョブを削除
func (h *JobHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// Export は生成結果をダウンロード形式で返す
// GET /api/jobs/:id/export?format=json|yaml|csv|markdown
func (h *JobHandler) Export(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	job, err := h.repo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	if job.Status != models.JobStatusDone || job.Result == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "job has not finished: " + string(job.Status)})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName(*job, format)+`"`)
	res.WriteHeader(http.StatusOK)
	return export.Write(res, *job, format)
}

// ListPage はジョブ一覧ページを表示
func (h *JobHandler) ListPage(c echo.Context) error {
	ctx := c.Request().Context()
	jobs, err := h.repo.ListRecent(ctx, 50)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return render(c, components.JobList(jobs))
}
