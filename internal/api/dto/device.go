package dto

// DevicePositionRequest carries either a fix or a platform error.
type DevicePositionRequest struct {
	Lat      *float64 `json:"lat" validate:"required_without=Error,omitempty,gte=-90,lte=90"`
	Lng      *float64 `json:"lng" validate:"required_without=Error,omitempty,gte=-180,lte=180"`
	Accuracy float64  `json:"accuracy" validate:"gte=0"`
	Error    string   `json:"error" validate:"max=256"`
}
