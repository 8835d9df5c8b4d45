package handlers

import (
	"net/http"

	"casegen/internal/storage"
	"casegen/internal/version"
	"casegen/web/components"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// HomeHandler はダッシュボードのハンドラー
type HomeHandler struct {
	jobRepo *storage.JobRepository
}

// NewHomeHandler creates a new HomeHandler
func NewHomeHandler(jobRepo *storage.JobRepository) *HomeHandler {
	return &HomeHandler{jobRepo: jobRepo}
}

// Home renders the dashboard with job statistics and recent activity
func (h *HomeHandler) Home(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.jobRepo.Stats(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	recent, err := h.jobRepo.ListRecent(ctx, 10)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return render(c, components.Home(stats, recent))
}

// Health answers liveness probes
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func render(c echo.Context, component templ.Component) error {
	return renderStatus(c, http.StatusOK, component)
}

func renderStatus(c echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return component.Render(c.Request().Context(), c.Response())
}
