package geolocation

import (
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"errors"
	"sync"
)

var ErrNoWatchers = errors.New("no active position watch")

type pushWatch struct {
	onPosition func(domain.Reading)
	onError    func(error)
}

// PushPlatform relays fixes posted by the driver's device to active watches.
type PushPlatform struct {
	mu      sync.Mutex
	nextID  ports.WatchID
	watches map[ports.WatchID]pushWatch
}

func NewPushPlatform() *PushPlatform {
	return &PushPlatform{watches: make(map[ports.WatchID]pushWatch)}
}

func (p *PushPlatform) Watch(_ ports.WatchOptions, onPosition func(domain.Reading), onError func(error)) (ports.WatchID, error) {
	if onPosition == nil {
		return 0, errors.New("push watch: onPosition is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	p.watches[p.nextID] = pushWatch{onPosition: onPosition, onError: onError}
	return p.nextID, nil
}

func (p *PushPlatform) ClearWatch(id ports.WatchID) {
	p.mu.Lock()
	delete(p.watches, id)
	p.mu.Unlock()
}

// Push delivers r to every active watch. Callbacks run outside the lock.
func (p *PushPlatform) Push(r domain.Reading) error {
	watches := p.snapshot()
	if len(watches) == 0 {
		return ErrNoWatchers
	}
	for _, w := range watches {
		w.onPosition(r)
	}
	return nil
}

// ReportError fails every active watch, as a device revoking permission
// would. The watches are removed.
func (p *PushPlatform) ReportError(err error) error {
	p.mu.Lock()
	watches := make([]pushWatch, 0, len(p.watches))
	for id, w := range p.watches {
		watches = append(watches, w)
		delete(p.watches, id)
	}
	p.mu.Unlock()

	if len(watches) == 0 {
		return ErrNoWatchers
	}
	for _, w := range watches {
		if w.onError != nil {
			w.onError(err)
		}
	}
	return nil
}

func (p *PushPlatform) snapshot() []pushWatch {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]pushWatch, 0, len(p.watches))
	for _, w := range p.watches {
		out = append(out, w)
	}
	return out
}
