package geolocation

import (
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"sync"
)

// MockLocationPlatform is a scriptable LocationPlatform for tests.
type MockLocationPlatform struct {
	// WatchErr, when set, makes Watch fail.
	WatchErr error

	mu      sync.Mutex
	nextID  ports.WatchID
	opts    []ports.WatchOptions
	active  map[ports.WatchID]pushWatch
	cleared []ports.WatchID
}

func NewMockLocationPlatform() *MockLocationPlatform {
	return &MockLocationPlatform{active: make(map[ports.WatchID]pushWatch)}
}

func (m *MockLocationPlatform) Watch(opts ports.WatchOptions, onPosition func(domain.Reading), onError func(error)) (ports.WatchID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opts = append(m.opts, opts)
	if m.WatchErr != nil {
		return 0, m.WatchErr
	}
	m.nextID++
	m.active[m.nextID] = pushWatch{onPosition: onPosition, onError: onError}
	return m.nextID, nil
}

func (m *MockLocationPlatform) ClearWatch(id ports.WatchID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, id)
	m.cleared = append(m.cleared, id)
}

// Emit sends r to every active watch and reports how many received it.
func (m *MockLocationPlatform) Emit(r domain.Reading) int {
	m.mu.Lock()
	watches := make([]pushWatch, 0, len(m.active))
	for _, w := range m.active {
		watches = append(watches, w)
	}
	m.mu.Unlock()

	for _, w := range watches {
		w.onPosition(r)
	}
	return len(watches)
}

// Fail invokes onError on every active watch. Watches stay registered until
// the subscriber clears them.
func (m *MockLocationPlatform) Fail(err error) {
	m.mu.Lock()
	watches := make([]pushWatch, 0, len(m.active))
	for _, w := range m.active {
		watches = append(watches, w)
	}
	m.mu.Unlock()

	for _, w := range watches {
		if w.onError != nil {
			w.onError(err)
		}
	}
}

func (m *MockLocationPlatform) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *MockLocationPlatform) Cleared() []ports.WatchID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.WatchID(nil), m.cleared...)
}

func (m *MockLocationPlatform) WatchCalls() []ports.WatchOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.WatchOptions(nil), m.opts...)
}
