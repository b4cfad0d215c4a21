package domain

import "time"

// A single position fix from the device location service.
type Reading struct {
	Lat      float64
	Lng      float64
	Accuracy float64
	At       time.Time
}

func (r Reading) LatLng() LatLng { return LatLng{Lat: r.Lat, Lng: r.Lng} }
