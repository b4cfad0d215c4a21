package api

import (
	"delivery-tracker/internal/api/handlers"
	"delivery-tracker/internal/ports"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type RouterDeps struct {
	Dashboard handlers.Dashboard
	// Feed is mounted at /api/device/position when set.
	Feed handlers.PositionFeed
	// Packages is mounted at /api/packages when set.
	Packages ports.PackageRepository
	UserID   string
	Logger   *slog.Logger
}

type requestValidator struct{ v *validator.Validate }

func (rv *requestValidator) Validate(i any) error { return rv.v.Struct(i) }

// NewRouter wires HTTP handlers with their dependencies.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps RouterDeps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(requestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	dash := &handlers.DashboardHandler{Dashboard: deps.Dashboard}

	e.GET("/health", handlers.Health)

	g := e.Group("/api")
	g.GET("/markers", dash.Markers)
	g.GET("/session", dash.Session)
	g.GET("/deliveries", dash.Deliveries)
	g.GET("/selection", dash.Selection)
	g.PUT("/selection", dash.Select)
	g.POST("/refresh", dash.Refresh)

	if deps.Packages != nil {
		pkgs := &handlers.PackagesHandler{Packages: deps.Packages, UserID: deps.UserID}
		g.GET("/packages", pkgs.List)
	}

	if deps.Feed != nil {
		device := &handlers.DeviceHandler{Feed: deps.Feed}
		g.POST("/device/position", device.Position)
	}

	return e
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.Error("unhandled request error", "path", c.Request().URL.Path, "err", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			logger.Warn("write error response failed", "err", err)
		}
	}
}
