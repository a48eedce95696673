package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router.
func SetupRouter(handler *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())

	e.GET("/healthz", handler.HandleHealth)

	e.POST("/v1/uploads", handler.HandleUpload)
	e.POST("/v1/uploads/sessions", handler.HandleInitSession)
	e.POST("/v1/uploads/sessions/:id/confirm", handler.HandleConfirmSession)

	return e
}
