// Package geolocation provides LocationPlatform implementations for a
// server-side dashboard: a replayed GPS track and an HTTP push feed.
package geolocation

import (
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// TrackPoint is one fix of a replay track file.
type TrackPoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// defaultTrack loops around a few city blocks.
var defaultTrack = []TrackPoint{
	{Lat: 40.7580, Lng: -73.9855, Accuracy: 8},
	{Lat: 40.7592, Lng: -73.9840, Accuracy: 6},
	{Lat: 40.7605, Lng: -73.9825, Accuracy: 5},
	{Lat: 40.7618, Lng: -73.9841, Accuracy: 7},
	{Lat: 40.7606, Lng: -73.9870, Accuracy: 6},
	{Lat: 40.7593, Lng: -73.9886, Accuracy: 9},
}

// ReplayPlatform plays a fixed track on a loop, one fix per interval, to every
// active watch.
type ReplayPlatform struct {
	track    []TrackPoint
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	nextID  ports.WatchID
	watches map[ports.WatchID]chan struct{}
}

// NewReplayPlatform loads the track at path, or uses a built-in track when
// path is empty.
func NewReplayPlatform(path string, interval time.Duration) (*ReplayPlatform, error) {
	if interval <= 0 {
		return nil, errors.New("replay platform: interval must be positive")
	}

	track := defaultTrack
	if path != "" {
		var err error
		track, err = LoadTrack(path)
		if err != nil {
			return nil, err
		}
	}

	return &ReplayPlatform{
		track:    track,
		interval: interval,
		now:      time.Now,
		watches:  make(map[ports.WatchID]chan struct{}),
	}, nil
}

// LoadTrack reads a JSON array of {lat, lng, accuracy} points.
func LoadTrack(path string) ([]TrackPoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load track: read %q: %w", path, err)
	}
	var track []TrackPoint
	if err := json.Unmarshal(b, &track); err != nil {
		return nil, fmt.Errorf("load track: parse %q: %w", path, err)
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("load track: %q has no points", path)
	}
	for i, p := range track {
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return nil, fmt.Errorf("load track: point %d out of range", i+1)
		}
	}
	return track, nil
}

func (p *ReplayPlatform) Watch(opts ports.WatchOptions, onPosition func(domain.Reading), onError func(error)) (ports.WatchID, error) {
	if onPosition == nil {
		return 0, errors.New("replay watch: onPosition is nil")
	}

	stop := make(chan struct{})

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.watches[id] = stop
	p.mu.Unlock()

	go p.play(stop, opts, onPosition)

	return id, nil
}

// ClearWatch signals the player and returns without waiting for it, so it may
// be called from inside a callback.
func (p *ReplayPlatform) ClearWatch(id ports.WatchID) {
	p.mu.Lock()
	stop, ok := p.watches[id]
	delete(p.watches, id)
	p.mu.Unlock()

	if ok {
		close(stop)
	}
}

func (p *ReplayPlatform) play(stop <-chan struct{}, opts ports.WatchOptions, onPosition func(domain.Reading)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		pt := p.track[i%len(p.track)]
		acc := pt.Accuracy
		if !opts.HighAccuracy {
			acc *= 4
		}

		select {
		case <-stop:
			return
		default:
		}
		onPosition(domain.Reading{Lat: pt.Lat, Lng: pt.Lng, Accuracy: acc, At: p.now()})

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
