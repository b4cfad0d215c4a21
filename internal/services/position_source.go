package services

import (
	"context"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"errors"
	"fmt"
	"sync"
)

// PositionSource is the only component that talks to the platform location
// service. Each Subscribe registers a fresh watch; retry policy belongs to
// the caller.
type PositionSource struct {
	platform ports.LocationPlatform
}

func NewPositionSource(platform ports.LocationPlatform) *PositionSource {
	return &PositionSource{platform: platform}
}

// PositionSubscription is one live platform watch.
//
// Readings is closed once the subscription ends: after Stop, after the
// context passed to Subscribe is done, or after a platform error. Err reports
// why it ended.
type PositionSubscription struct {
	platform ports.LocationPlatform
	readings chan domain.Reading
	done     chan struct{}

	mu         sync.Mutex
	watchID    ports.WatchID
	registered bool
	stopped    bool
	err        error
	inflight   sync.WaitGroup
}

// Subscribe starts a high-accuracy watch.
func (s *PositionSource) Subscribe(ctx context.Context) (*PositionSubscription, error) {
	if s.platform == nil {
		return nil, errors.New("subscribe positions: platform is nil")
	}

	sub := &PositionSubscription{
		platform: s.platform,
		readings: make(chan domain.Reading),
		done:     make(chan struct{}),
	}

	id, err := s.platform.Watch(ports.WatchOptions{HighAccuracy: true}, sub.deliver, sub.fail)
	if err != nil {
		return nil, fmt.Errorf("subscribe positions: %w: %w", domain.ErrLocationUnavailable, err)
	}

	sub.mu.Lock()
	sub.watchID = id
	sub.registered = true
	endedEarly := sub.stopped
	sub.mu.Unlock()

	// The platform may report an error before Watch returns.
	if endedEarly {
		s.platform.ClearWatch(id)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Stop()
		case <-sub.done:
		}
	}()

	return sub, nil
}

func (s *PositionSubscription) Readings() <-chan domain.Reading { return s.readings }

// Done is closed as soon as the subscription ends.
func (s *PositionSubscription) Done() <-chan struct{} { return s.done }

// Err returns nil for a caller-initiated stop and an error wrapping
// domain.ErrLocationUnavailable when the platform failed.
func (s *PositionSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop deregisters the platform watch. It is safe to call more than once.
// Once Stop returns no further reading is delivered.
func (s *PositionSubscription) Stop() { s.finish(nil) }

func (s *PositionSubscription) deliver(r domain.Reading) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case s.readings <- r:
	case <-s.done:
	}
}

func (s *PositionSubscription) fail(err error) {
	s.finish(fmt.Errorf("watch position: %w: %w", domain.ErrLocationUnavailable, err))
}

func (s *PositionSubscription) finish(err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.err = err
	id, registered := s.watchID, s.registered
	s.mu.Unlock()

	close(s.done)
	if registered {
		s.platform.ClearWatch(id)
	}

	// Pending deliveries bail out on done; wait for them before closing.
	s.inflight.Wait()
	close(s.readings)
}
