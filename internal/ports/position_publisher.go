package ports

import (
	"context"
	"delivery-tracker/internal/domain"
)

// Optional sink for driver position readings (telemetry).
type PositionPublisher interface {
	Publish(ctx context.Context, driverID string, r domain.Reading) error
	Close() error
}
