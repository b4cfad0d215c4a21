package domain

import "fmt"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// CoordinatesFromList parses a GeoJSON position ([lon, lat]).
func CoordinatesFromList(pos []float64) (Coordinates, error) {
	if len(pos) < 2 {
		return Coordinates{}, fmt.Errorf("coordinates: want [lon, lat], got %d values", len(pos))
	}
	return Coordinates{Lon: pos[0], Lat: pos[1]}, nil
}

// LatLng converts wire order (lon, lat) into map order (lat, lng).
func (c Coordinates) LatLng() LatLng { return LatLng{Lat: c.Lat, Lng: c.Lon} }

// Map position, latitude first.
type LatLng struct {
	Lat float64
	Lng float64
}
