package domain

import "errors"

var (
	// ErrLocationUnavailable is reported when the platform denies or loses geolocation.
	ErrLocationUnavailable = errors.New("location unavailable")

	ErrUnknownStatus = errors.New("unknown delivery status")
)
