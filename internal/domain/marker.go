package domain

// MarkerRole is the semantic key of a map marker.
type MarkerRole string

const (
	RoleDriver      MarkerRole = "driver"
	RoleOrigin      MarkerRole = "origin"
	RoleDestination MarkerRole = "destination"
)

type MarkerStyle struct {
	Color string
}

// Default presentation per role, matching the dashboard pins.
var (
	DriverStyle      = MarkerStyle{Color: "#FF0000"}
	OriginStyle      = MarkerStyle{Color: "#0000FF"}
	DestinationStyle = MarkerStyle{Color: "#00FF00"}
)

// A visual point on the map. At most one Marker exists per Role.
type Marker struct {
	Role     MarkerRole
	Position LatLng
	Style    MarkerStyle
	Label    string
}
