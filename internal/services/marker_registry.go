package services

import (
	"delivery-tracker/internal/domain"
	"slices"
	"sync"
)

// MarkerRegistry is the keyed store of map markers, one per role.
//
// Writes come from the dashboard loop only; the lock exists so HTTP readers
// can take consistent snapshots. There is intentionally no delete path:
// once placed, a marker lives as long as the registry.
type MarkerRegistry struct {
	mu      sync.RWMutex
	markers map[domain.MarkerRole]*domain.Marker
}

func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{markers: make(map[domain.MarkerRole]*domain.Marker)}
}

// Upsert places the marker for role. An existing marker only has its position
// replaced; style and label keep their first values.
func (r *MarkerRegistry) Upsert(role domain.MarkerRole, pos domain.LatLng, style domain.MarkerStyle, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.markers[role]; ok {
		m.Position = pos
		return
	}
	r.markers[role] = &domain.Marker{
		Role:     role,
		Position: pos,
		Style:    style,
		Label:    label,
	}
}

func (r *MarkerRegistry) Get(role domain.MarkerRole) (domain.Marker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.markers[role]
	if !ok {
		return domain.Marker{}, false
	}
	return *m, true
}

// Snapshot returns a copy of all markers ordered by role.
func (r *MarkerRegistry) Snapshot() []domain.Marker {
	r.mu.RLock()
	out := make([]domain.Marker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, *m)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Marker) int {
		switch {
		case a.Role < b.Role:
			return -1
		case a.Role > b.Role:
			return 1
		}
		return 0
	})
	return out
}

func (r *MarkerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}
