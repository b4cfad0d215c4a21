package domain

import "fmt"

// DeliveryStatus is drawn from a closed set; it is the sole driver of room membership.
type DeliveryStatus string

const (
	StatusOpen      DeliveryStatus = "open"
	StatusPickedUp  DeliveryStatus = "picked-up"
	StatusInTransit DeliveryStatus = "in-transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// ParseDeliveryStatus validates a wire status value.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch st := DeliveryStatus(s); st {
	case StatusOpen, StatusPickedUp, StatusInTransit, StatusDelivered, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("parse delivery status %q: %w", s, ErrUnknownStatus)
}

// IsTerminal reports whether no further transition is expected.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Links a Package to a transport attempt.
// Location is the last driver position the backend knows about and may be zero.
type Delivery struct {
	ID        string
	PackageID string
	Package   Package
	Status    DeliveryStatus
	Location  Coordinates
}
