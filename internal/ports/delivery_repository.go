package ports

import (
	"context"
	"delivery-tracker/internal/domain"
)

// Port: a boundary for retrieving the deliveries visible to a user.
// Each Delivery is returned with its Package populated.
type DeliveryRepository interface {
	// Return every delivery the user takes part in.
	FindAllForUser(ctx context.Context, userID string) ([]domain.Delivery, error)
}

// Port: a boundary for retrieving the packages visible to a user.
type PackageRepository interface {
	FindAllForUser(ctx context.Context, userID string) ([]domain.Package, error)
}

// Optional extension of a repository that caches results.
type CacheInvalidator interface {
	// Drop cached data for the user so the next read hits the source.
	Invalidate(ctx context.Context, userID string) error
}
