package handlers

import (
	"casegen/internal/version"
	"casegen/web/components"

	"github.com/labstack/echo/v4"
)

func About(c echo.Context) error {
	return render(c, components.About(version.Version))
}
