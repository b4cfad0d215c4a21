package handlers

import (
	"context"
	"delivery-tracker/internal/api/dto"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/services"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Dashboard is the slice of services.Dashboard the HTTP surface needs.
type Dashboard interface {
	State() services.DashboardState
	Markers() []domain.Marker
	SelectPackage(ctx context.Context, packageID string) error
	Refresh()
}

// DashboardHandler exposes the map, session and form surfaces.
type DashboardHandler struct {
	Dashboard Dashboard
}

func (h *DashboardHandler) Markers(c echo.Context) error {
	markers := h.Dashboard.Markers()

	res := dto.ListMarkersResponse{Markers: make([]dto.MarkerResponse, 0, len(markers))}
	for _, m := range markers {
		res.Markers = append(res.Markers, dto.MarkerResponse{
			Role:  string(m.Role),
			Lat:   m.Position.Lat,
			Lng:   m.Position.Lng,
			Color: m.Style.Color,
			Label: m.Label,
		})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DashboardHandler) Session(c echo.Context) error {
	st := h.Dashboard.State()

	res := dto.SessionResponse{
		SessionID:  st.SessionID,
		State:      st.Room.State.String(),
		DeliveryID: st.Room.DeliveryID,
	}
	if st.Center != nil {
		res.Center = &dto.LatLng{Lat: st.Center.Lat, Lng: st.Center.Lng}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DashboardHandler) Deliveries(c echo.Context) error {
	st := h.Dashboard.State()

	res := dto.ListDeliveriesResponse{
		Loaded:     st.Loaded,
		Deliveries: make([]dto.DeliveryResponse, 0, len(st.Deliveries)),
	}
	for _, d := range st.Deliveries {
		res.Deliveries = append(res.Deliveries, toDeliveryResponse(d))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DashboardHandler) Selection(c echo.Context) error {
	return c.JSON(http.StatusOK, selectionResponse(h.Dashboard.State()))
}

func (h *DashboardHandler) Select(c echo.Context) error {
	var req dto.SelectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.Dashboard.SelectPackage(c.Request().Context(), req.PackageID); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return writeError(http.StatusServiceUnavailable, "dashboard not running")
		}
		return err
	}
	return c.JSON(http.StatusOK, selectionResponse(h.Dashboard.State()))
}

func (h *DashboardHandler) Refresh(c echo.Context) error {
	h.Dashboard.Refresh()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func selectionResponse(st services.DashboardState) dto.SelectionResponse {
	return dto.SelectionResponse{
		PackageID:  st.PackageID,
		DeliveryID: st.Room.DeliveryID,
		State:      st.Room.State.String(),
	}
}

func toDeliveryResponse(d domain.Delivery) dto.DeliveryResponse {
	p := d.Package
	res := dto.DeliveryResponse{
		DeliveryID:  d.ID,
		PackageID:   p.ID,
		Status:      string(d.Status),
		Description: p.Description,
		Weight:      p.Weight,
		From:        toEndpoint(p.FromName, p.FromAddress, p.FromUser, p.FromLocation.Lat, p.FromLocation.Lon),
		To:          toEndpoint(p.ToName, p.ToAddress, p.ToUser, p.ToLocation.Lat, p.ToLocation.Lon),
	}
	if d.Location != (domain.Coordinates{}) {
		ll := d.Location.LatLng()
		res.Location = &dto.LatLng{Lat: ll.Lat, Lng: ll.Lng}
	}
	return res
}
