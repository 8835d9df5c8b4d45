package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"casegen/internal/genapi"
	"casegen/internal/models"
	"casegen/internal/poller"
	"casegen/web/components"

	"github.com/labstack/echo/v4"
)

// GeneratorHandler は単一ストーリーの生成画面とAPI
type GeneratorHandler struct {
	poller  *poller.Poller
	resumed sync.Once
}

// NewGeneratorHandler creates a new GeneratorHandler
func NewGeneratorHandler(p *poller.Poller) *GeneratorHandler {
	return &GeneratorHandler{poller: p}
}

type submitRequest struct {
	UserStory string `json:"user_story" form:"user_story"`
}

type resumeRequest struct {
	ID string `json:"id" form:"id"`
}

// jobResponse is the JSON view of the poller's job
type jobResponse struct {
	ID     string     `json:"id,omitempty"`
	Status string     `json:"status"`
	Active bool       `json:"active"`
	Error  string     `json:"error,omitempty"`
	Job    models.Job `json:"job"`
}

func (h *GeneratorHandler) snapshot() jobResponse {
	job := h.poller.Snapshot()
	return jobResponse{
		ID:     job.ID,
		Status: string(job.Status),
		Active: h.poller.Active(),
		Error:  job.ErrorMessage(),
		Job:    job,
	}
}

// Page renders the generator page. Opening the page rejoins the remembered
// job when nothing is being polled.
// GET /generator
func (h *GeneratorHandler) Page(c echo.Context) error {
	if _, err := h.poller.ResumeCurrent(c.Request().Context()); err != nil {
		c.Logger().Warnf("resume on page load failed: %v", err)
	}
	return render(c, components.Generator(h.poller.Snapshot(), ""))
}

// Submit starts generation for a user story
// POST /api/generator
func (h *GeneratorHandler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return h.failed(c, http.StatusBadRequest, "invalid request body")
	}

	id, err := h.poller.Submit(c.Request().Context(), req.UserStory)
	switch {
	case errors.Is(err, poller.ErrEmptyInput):
		return h.failed(c, http.StatusBadRequest, "user story is required")
	case errors.Is(err, poller.ErrSuperseded):
		if wantsHTML(c) {
			return h.failed(c, http.StatusConflict, "submission was superseded")
		}
		return c.JSON(http.StatusConflict, map[string]string{"error": "submission was superseded", "id": id})
	case err != nil:
		return h.failed(c, http.StatusBadGateway, err.Error())
	}

	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/generator")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"id": id})
}

// Get returns the job as currently observed. The first read after start
// rejoins the remembered job.
// GET /api/generator
func (h *GeneratorHandler) Get(c echo.Context) error {
	h.resumed.Do(func() {
		if _, err := h.poller.ResumeCurrent(c.Request().Context()); err != nil {
			c.Logger().Warnf("resume on first read failed: %v", err)
		}
	})
	return c.JSON(http.StatusOK, h.snapshot())
}

// Resume rejoins a job by id
// POST /api/generator/resume
func (h *GeneratorHandler) Resume(c echo.Context) error {
	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return h.failed(c, http.StatusBadRequest, "invalid request body")
	}

	err := h.poller.Resume(c.Request().Context(), strings.TrimSpace(req.ID))
	switch {
	case errors.Is(err, poller.ErrNoJobID):
		return h.failed(c, http.StatusBadRequest, "id is required")
	case errors.Is(err, genapi.ErrJobNotFound):
		return h.failed(c, http.StatusNotFound, err.Error())
	case errors.Is(err, poller.ErrSuperseded):
		return h.failed(c, http.StatusConflict, "resume was superseded")
	case err != nil:
		return h.failed(c, http.StatusBadGateway, err.Error())
	}

	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/generator")
	}
	return c.JSON(http.StatusOK, h.snapshot())
}

// Cancel stops polling. The observed job is kept.
// DELETE /api/generator/session
func (h *GeneratorHandler) Cancel(c echo.Context) error {
	h.poller.Cancel()
	return c.JSON(http.StatusOK, h.snapshot())
}

// failed answers an error. Browser form posts get the generator page back
// with the message instead of a JSON body.
func (h *GeneratorHandler) failed(c echo.Context, status int, msg string) error {
	if !wantsHTML(c) {
		return c.JSON(status, map[string]string{"error": msg})
	}
	job := h.poller.Snapshot()
	notice := msg
	if job.ErrorMessage() == msg {
		// パネル側に同じエラーが表示される
		notice = ""
	}
	return renderStatus(c, status, components.Generator(job, notice))
}

// wantsHTML reports whether the request came from a browser form post,
// which expects a redirect or a page instead of a JSON body.
func wantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get("Accept"), echo.MIMETextHTML)
}
