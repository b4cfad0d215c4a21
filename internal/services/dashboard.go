package services

import (
	"context"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/platform/obs"
	"delivery-tracker/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// DefaultReassertInterval is how often the room intent is re-emitted
// regardless of other activity.
const DefaultReassertInterval = 20 * time.Second

type DashboardDeps struct {
	Deliveries ports.DeliveryRepository
	Channel    ports.EventChannel
	Platform   ports.LocationPlatform
	// Optional.
	Publisher ports.PositionPublisher
	Logger    *slog.Logger
	// NewTicker overrides the re-assertion ticker; mainly for tests.
	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

type DashboardConfig struct {
	UserID                string
	ReassertInterval      time.Duration
	RestartMin            time.Duration
	RestartMax            time.Duration
	RefetchOnStatusChange bool
}

// DashboardState is the read-side snapshot served to HTTP readers.
type DashboardState struct {
	SessionID  string
	Room       RoomSession
	PackageID  string
	Center     *domain.LatLng
	Deliveries []domain.Delivery
	Loaded     bool
}

type selectRequest struct {
	packageID string
	applied   chan struct{}
}

type fetchResult struct {
	gen        uint64
	deliveries []domain.Delivery
	err        error
}

type inboundEvent struct {
	event string
	data  json.RawMessage
}

// Dashboard owns one driver's dashboard session.
//
// All mutable state (selector, room controller, marker writes) is confined
// to the goroutine running Run; everything else talks to it through
// channels. Run must be called at most once.
type Dashboard struct {
	deps      DashboardDeps
	cfg       DashboardConfig
	sessionID string
	logger    *slog.Logger

	positions *PositionSource
	markers   *MarkerRegistry
	selector  *DeliverySelector
	room      *RoomSessionController

	selectCh  chan selectRequest
	refreshCh chan struct{}
	fetchCh   chan fetchResult
	inboundCh chan inboundEvent

	// loop-owned
	fetchGen    uint64
	fetchCancel context.CancelFunc
	loaded      bool
	center      *domain.LatLng

	stateMu sync.RWMutex
	state   DashboardState
}

func NewDashboard(deps DashboardDeps, cfg DashboardConfig) (*Dashboard, error) {
	if deps.Deliveries == nil {
		return nil, errors.New("new dashboard: delivery repository is nil")
	}
	if deps.Channel == nil {
		return nil, errors.New("new dashboard: event channel is nil")
	}
	if deps.Platform == nil {
		return nil, errors.New("new dashboard: location platform is nil")
	}
	if cfg.ReassertInterval <= 0 {
		cfg.ReassertInterval = DefaultReassertInterval
	}
	if cfg.RestartMin <= 0 {
		cfg.RestartMin = time.Second
	}
	if cfg.RestartMax < cfg.RestartMin {
		cfg.RestartMax = 30 * cfg.RestartMin
	}
	if deps.NewTicker == nil {
		deps.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}

	sessionID := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID)

	markers := NewMarkerRegistry()
	d := &Dashboard{
		deps:      deps,
		cfg:       cfg,
		sessionID: sessionID,
		logger:    logger,
		positions: NewPositionSource(deps.Platform),
		markers:   markers,
		selector:  NewDeliverySelector(),
		room:      NewRoomSessionController(deps.Channel, markers, logger),
		selectCh:  make(chan selectRequest),
		refreshCh: make(chan struct{}, 1),
		fetchCh:   make(chan fetchResult, 1),
		inboundCh: make(chan inboundEvent, 64),
	}
	d.state = DashboardState{SessionID: sessionID}
	return d, nil
}

// Run drives the session until ctx is done. Every acquired resource (position
// watch, re-assertion ticker, in-flight fetch) is released before it returns.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, ev := range []string{ports.EventJoinDeliveryRoom, ports.EventLocationChanged, ports.EventStatusChanged} {
		d.deps.Channel.On(ev, d.inboundHandler(ev))
	}

	d.startFetch(ctx, false)
	defer func() {
		if d.fetchCancel != nil {
			d.fetchCancel()
		}
	}()

	restarts := backoff.NewExponentialBackOff()
	restarts.InitialInterval = d.cfg.RestartMin
	restarts.MaxInterval = d.cfg.RestartMax
	restarts.Reset()

	var (
		sub      *PositionSubscription
		readings <-chan domain.Reading
		restart  *time.Timer
		restartC <-chan time.Time
	)
	subscribe := func() {
		s, err := d.positions.Subscribe(ctx)
		if err != nil {
			delay := restarts.NextBackOff()
			d.logger.Warn("position source unavailable", "err", err, "retry_in", delay)
			restart = time.NewTimer(delay)
			restartC = restart.C
			return
		}
		sub, readings = s, s.Readings()
	}
	subscribe()
	defer func() {
		if sub != nil {
			sub.Stop()
		}
		if restart != nil {
			restart.Stop()
		}
	}()

	tick, stopTicker := d.deps.NewTicker(d.cfg.ReassertInterval)
	defer stopTicker()

	d.logger.Info("dashboard started",
		"user_id", d.cfg.UserID,
		"reassert_interval", d.cfg.ReassertInterval,
	)
	d.evaluate(ctx, TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dashboard stopped")
			return nil

		case r, ok := <-readings:
			if !ok {
				err := sub.Err()
				sub, readings = nil, nil
				if err == nil {
					continue
				}
				delay := restarts.NextBackOff()
				d.logger.Warn("position source ended", "err", err, "retry_in", delay)
				restart = time.NewTimer(delay)
				restartC = restart.C
				continue
			}
			restarts.Reset()
			d.onReading(ctx, r)

		case <-restartC:
			restart, restartC = nil, nil
			subscribe()

		case <-tick:
			d.evaluate(ctx, TriggerTimer)

		case req := <-d.selectCh:
			if d.selector.SetPackageID(req.packageID) {
				d.evaluate(ctx, TriggerSelection)
			} else {
				d.publishState()
			}
			close(req.applied)

		case <-d.refreshCh:
			d.startFetch(ctx, true)

		case res := <-d.fetchCh:
			d.onFetch(ctx, res)

		case ev := <-d.inboundCh:
			d.onInbound(ctx, ev)
		}
	}
}

// SelectPackage sets the form selection. It returns once the dashboard loop
// has applied it, so a following read observes the new state.
func (d *Dashboard) SelectPackage(ctx context.Context, packageID string) error {
	req := selectRequest{packageID: packageID, applied: make(chan struct{})}
	select {
	case d.selectCh <- req:
	case <-ctx.Done():
		return fmt.Errorf("select package: %w", ctx.Err())
	}
	select {
	case <-req.applied:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("select package: %w", ctx.Err())
	}
}

// Refresh invalidates cached deliveries and refetches them. Requests made
// while one is pending are coalesced.
func (d *Dashboard) Refresh() {
	select {
	case d.refreshCh <- struct{}{}:
	default:
	}
}

func (d *Dashboard) SessionID() string { return d.sessionID }

func (d *Dashboard) Markers() []domain.Marker { return d.markers.Snapshot() }

func (d *Dashboard) State() DashboardState {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	s := d.state
	s.Deliveries = slices.Clone(d.state.Deliveries)
	if d.state.Center != nil {
		c := *d.state.Center
		s.Center = &c
	}
	return s
}

func (d *Dashboard) evaluate(ctx context.Context, trigger Trigger) {
	selected, ok := d.selector.Selected()
	d.room.Evaluate(ctx, selected, ok, trigger)
	d.publishState()
}

func (d *Dashboard) publishState() {
	s := DashboardState{
		SessionID:  d.sessionID,
		Room:       d.room.Session(),
		PackageID:  d.selector.PackageID(),
		Deliveries: d.selector.Deliveries(),
		Loaded:     d.loaded,
	}
	if d.center != nil {
		c := *d.center
		s.Center = &c
	}

	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

func (d *Dashboard) onReading(ctx context.Context, r domain.Reading) {
	pos := r.LatLng()
	d.center = &pos
	d.markers.Upsert(domain.RoleDriver, pos, domain.DriverStyle, "Driver")

	if d.deps.Publisher != nil {
		if err := d.deps.Publisher.Publish(ctx, d.cfg.UserID, r); err != nil {
			d.logger.Warn("publish position failed", "err", err)
		}
	}

	// A fresh fix doubles as a liveness heartbeat for the room session.
	d.evaluate(ctx, TriggerHeartbeat)
}

// startFetch supersedes any in-flight fetch. Results are tagged with a
// generation so a late answer from a cancelled fetch is ignored.
func (d *Dashboard) startFetch(ctx context.Context, invalidate bool) {
	if d.fetchCancel != nil {
		d.fetchCancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	d.fetchCancel = cancel
	d.fetchGen++
	gen := d.fetchGen

	repo := d.deps.Deliveries
	userID := d.cfg.UserID
	logger := d.logger

	go func() {
		var err error
		defer obs.Time(fctx, "dashboard.fetchDeliveries")(&err)

		if inv, ok := repo.(ports.CacheInvalidator); ok && invalidate {
			if ierr := inv.Invalidate(fctx, userID); ierr != nil {
				logger.Warn("invalidate delivery cache failed", "err", ierr)
			}
		}

		var deliveries []domain.Delivery
		deliveries, err = repo.FindAllForUser(fctx, userID)

		select {
		case d.fetchCh <- fetchResult{gen: gen, deliveries: deliveries, err: err}:
		case <-fctx.Done():
		}
	}()
}

func (d *Dashboard) onFetch(ctx context.Context, res fetchResult) {
	if res.gen != d.fetchGen {
		return
	}
	if d.fetchCancel != nil {
		d.fetchCancel()
		d.fetchCancel = nil
	}

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			return
		}
		// Keep the last good snapshot; with none the list stays empty and the
		// session degrades to idle.
		d.logger.Error("fetch deliveries failed", "err", res.err, "have_data", d.loaded)
		return
	}

	d.loaded = true
	if d.selector.SetDeliveries(res.deliveries) {
		d.evaluate(ctx, TriggerSelection)
		return
	}
	d.publishState()
}

func (d *Dashboard) inboundHandler(event string) func(json.RawMessage) {
	return func(data json.RawMessage) {
		select {
		case d.inboundCh <- inboundEvent{event: event, data: data}:
		default:
			d.logger.Warn("inbound event dropped, queue full", "event", event)
		}
	}
}

func (d *Dashboard) onInbound(ctx context.Context, ev inboundEvent) {
	switch ev.event {
	case ports.EventLocationChanged:
		var msg ports.LocationChangedDto
		if err := json.Unmarshal(ev.data, &msg); err != nil {
			d.logger.Warn("decode inbound event failed", "event", ev.event, "err", err)
			return
		}
		d.logger.Info("event received",
			"event", ev.event,
			"delivery_id", msg.DeliveryID,
			"coordinates", msg.Location.Coordinates,
		)

	case ports.EventStatusChanged:
		var msg ports.StatusChangedDto
		if err := json.Unmarshal(ev.data, &msg); err != nil {
			d.logger.Warn("decode inbound event failed", "event", ev.event, "err", err)
			return
		}
		d.logger.Info("event received",
			"event", ev.event,
			"delivery_id", msg.DeliveryID,
			"status", msg.Status,
		)
		if d.cfg.RefetchOnStatusChange {
			d.startFetch(ctx, true)
		}

	default:
		d.logger.Info("event received", "event", ev.event, "data", string(ev.data))
	}
}
