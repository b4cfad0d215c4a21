package handlers

import (
	"delivery-tracker/internal/adapters/geolocation"
	"delivery-tracker/internal/api/dto"
	"delivery-tracker/internal/domain"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PositionFeed accepts fixes reported by the driver's device.
type PositionFeed interface {
	Push(r domain.Reading) error
	ReportError(err error) error
}

type DeviceHandler struct {
	Feed PositionFeed
}

// Position relays one device report to the dashboard's position watch.
func (h *DeviceHandler) Position(c echo.Context) error {
	var req dto.DevicePositionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var err error
	if req.Error != "" {
		err = h.Feed.ReportError(errors.New(req.Error))
	} else {
		err = h.Feed.Push(domain.Reading{
			Lat:      *req.Lat,
			Lng:      *req.Lng,
			Accuracy: req.Accuracy,
			At:       time.Now().UTC(),
		})
	}

	if errors.Is(err, geolocation.ErrNoWatchers) {
		return writeError(http.StatusConflict, "no active position watch")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}
