package handlers

import (
	"delivery-tracker/internal/api/dto"
	"delivery-tracker/internal/ports"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PackagesHandler lists the packages the dashboard user can pick from.
type PackagesHandler struct {
	Packages ports.PackageRepository
	UserID   string
}

func (h *PackagesHandler) List(c echo.Context) error {
	pkgs, err := h.Packages.FindAllForUser(c.Request().Context(), h.UserID)
	if err != nil {
		return writeError(http.StatusBadGateway, "package source unavailable")
	}

	res := dto.ListPackagesResponse{Packages: make([]dto.PackageResponse, 0, len(pkgs))}
	for _, p := range pkgs {
		res.Packages = append(res.Packages, dto.PackageResponse{
			PackageID:   p.ID,
			Description: p.Description,
			Weight:      p.Weight,
			From:        toEndpoint(p.FromName, p.FromAddress, p.FromUser, p.FromLocation.Lat, p.FromLocation.Lon),
			To:          toEndpoint(p.ToName, p.ToAddress, p.ToUser, p.ToLocation.Lat, p.ToLocation.Lon),
		})
	}
	return c.JSON(http.StatusOK, res)
}

func toEndpoint(name, address, user string, lat, lng float64) dto.Endpoint {
	return dto.Endpoint{
		Name:     name,
		Address:  address,
		Location: dto.LatLng{Lat: lat, Lng: lng},
		User:     user,
	}
}
