package dto

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type MarkerResponse struct {
	Role  string  `json:"role"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

type ListMarkersResponse struct {
	Markers []MarkerResponse `json:"markers"`
}

type SessionResponse struct {
	SessionID  string  `json:"session_id"`
	State      string  `json:"state"`
	DeliveryID string  `json:"delivery_id,omitempty"`
	Center     *LatLng `json:"center"`
}

type Endpoint struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Location LatLng `json:"location"`
	User     string `json:"user"`
}

type DeliveryResponse struct {
	DeliveryID  string   `json:"delivery_id"`
	PackageID   string   `json:"package_id"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	From        Endpoint `json:"from"`
	To          Endpoint `json:"to"`
	Location    *LatLng  `json:"location,omitempty"`
}

type ListDeliveriesResponse struct {
	Loaded     bool               `json:"loaded"`
	Deliveries []DeliveryResponse `json:"deliveries"`
}

type SelectionRequest struct {
	// Empty clears the selection.
	PackageID string `json:"package_id" validate:"max=64"`
}

type SelectionResponse struct {
	PackageID  string `json:"package_id"`
	DeliveryID string `json:"delivery_id,omitempty"`
	State      string `json:"state"`
}

type PackageResponse struct {
	PackageID   string   `json:"package_id"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	From        Endpoint `json:"from"`
	To          Endpoint `json:"to"`
}

type ListPackagesResponse struct {
	Packages []PackageResponse `json:"packages"`
}
