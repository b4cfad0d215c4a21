package ports

import (
	"context"
	"encoding/json"
)

// Wire names of the event-stream events.
const (
	EventJoinDeliveryRoom  = "join_delivery_room"
	EventLeaveDeliveryRoom = "leave_delivery_room"
	EventLocationChanged   = "location_changed"
	EventStatusChanged     = "status_changed"
)

// Contract for the persistent bidirectional event stream.
// Emit is fire-and-forget: a nil error means the frame was handed to the
// transport, not that the server acted on it.
type EventChannel interface {
	Emit(ctx context.Context, event string, payload any) error
	// Register a handler for an inbound event. Handlers run on the channel's
	// read goroutine and must not block.
	On(event string, handler func(data json.RawMessage))
}

type JoinDeliveryRoomDto struct {
	Event      string `json:"event"`
	DeliveryID string `json:"delivery_id"`
}

type LeaveDeliveryRoomDto struct {
	Event      string `json:"event"`
	DeliveryID string `json:"delivery_id"`
}

// Inbound location_changed payload.
type LocationChangedDto struct {
	DeliveryID string `json:"delivery_id"`
	Location   struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"location"`
}

// Inbound status_changed payload.
type StatusChangedDto struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}
