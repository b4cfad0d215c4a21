package ports

import "delivery-tracker/internal/domain"

type WatchID int

type WatchOptions struct {
	HighAccuracy bool
}

// Contract for the device location service.
// Callbacks may run on any goroutine; a watch keeps reporting until cleared.
type LocationPlatform interface {
	// Register a continuous watch. onPosition fires for every fix and
	// onError when the platform denies or loses geolocation.
	Watch(opts WatchOptions, onPosition func(domain.Reading), onError func(error)) (WatchID, error)
	// Deregister a watch. Clearing an unknown id is a no-op.
	ClearWatch(id WatchID)
}
