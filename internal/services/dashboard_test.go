package services

import (
	"context"
	"delivery-tracker/internal/adapters/eventchannel"
	"delivery-tracker/internal/adapters/geolocation"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu            sync.Mutex
	deliveries    []domain.Delivery
	err           error
	calls         int
	invalidations int
}

func (r *stubRepo) FindAllForUser(ctx context.Context, userID string) ([]domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return append([]domain.Delivery(nil), r.deliveries...), nil
}

func (r *stubRepo) Invalidate(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations++
	return nil
}

func (r *stubRepo) set(deliveries []domain.Delivery, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries, r.err = deliveries, err
}

func (r *stubRepo) counts() (calls, invalidations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.invalidations
}

type stubPublisher struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (p *stubPublisher) Publish(ctx context.Context, driverID string, r domain.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, r)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}

type harness struct {
	dash      *Dashboard
	repo      *stubRepo
	channel   *eventchannel.RecordingChannel
	platform  *geolocation.MockLocationPlatform
	publisher *stubPublisher
	tick      chan time.Time
	tickStop  atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	runErr    error
}

func startDashboard(t *testing.T, deliveries []domain.Delivery) *harness {
	t.Helper()
	h := &harness{
		repo:      &stubRepo{deliveries: deliveries},
		channel:   eventchannel.NewRecordingChannel(),
		platform:  geolocation.NewMockLocationPlatform(),
		publisher: &stubPublisher{},
		tick:      make(chan time.Time),
		done:      make(chan struct{}),
	}

	dash, err := NewDashboard(DashboardDeps{
		Deliveries: h.repo,
		Channel:    h.channel,
		Platform:   h.platform,
		Publisher:  h.publisher,
		Logger:     quietLogger(),
		NewTicker: func(time.Duration) (<-chan time.Time, func()) {
			return h.tick, func() { h.tickStop.Store(true) }
		},
	}, DashboardConfig{
		UserID:                "u1",
		RestartMin:            5 * time.Millisecond,
		RestartMax:            20 * time.Millisecond,
		RefetchOnStatusChange: true,
	})
	require.NoError(t, err)
	h.dash = dash

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.runErr = dash.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(h.stop)

	require.Eventually(t, func() bool { return dash.State().Loaded }, 2*time.Second, time.Millisecond)
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
	}
}

func (h *harness) countEvents(event string) int {
	n := 0
	for _, e := range h.channel.Emitted() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func TestDashboard_SelectJoinsRoom(t *testing.T) {
	h := startDashboard(t, []domain.Delivery{delivery("d1", "p1", domain.StatusOpen)})

	assert.Equal(t, RoomIdle, h.dash.State().Room.State)

	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))

	st := h.dash.State()
	assert.Equal(t, RoomSession{State: RoomJoined, DeliveryID: "d1"}, st.Room)
	assert.Equal(t, "p1", st.PackageID)
	assert.Equal(t, 1, h.countEvents(ports.EventJoinDeliveryRoom))

	markers := h.dash.Markers()
	require.Len(t, markers, 2)
	assert.Equal(t, domain.RoleDestination, markers[0].Role)
	assert.Equal(t, domain.RoleOrigin, markers[1].Role)
}

func TestDashboard_TimerReasserts(t *testing.T) {
	h := startDashboard(t, []domain.Delivery{delivery("d1", "p1", domain.StatusInTransit)})
	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))

	h.tick <- time.Now()
	h.tick <- time.Now()

	require.Eventually(t, func() bool {
		return h.countEvents(ports.EventJoinDeliveryRoom) == 3
	}, time.Second, time.Millisecond)
}

func TestDashboard_ReadingMovesDriverAndHeartbeats(t *testing.T) {
	h := startDashboard(t, []domain.Delivery{delivery("d1", "p1", domain.StatusOpen)})
	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))
	require.Eventually(t, func() bool { return h.platform.Active() == 1 }, time.Second, time.Millisecond)

	require.Equal(t, 1, h.platform.Emit(domain.Reading{Lat: 5, Lng: 6}))

	// State is published after the heartbeat's intent is emitted.
	require.Eventually(t, func() bool { return h.dash.State().Center != nil }, time.Second, time.Millisecond)
	assert.Equal(t, 2, h.countEvents(ports.EventJoinDeliveryRoom))

	st := h.dash.State()
	assert.Equal(t, domain.LatLng{Lat: 5, Lng: 6}, *st.Center)
	assert.Equal(t, 1, h.publisher.count())

	var driver *domain.Marker
	for _, m := range h.dash.Markers() {
		if m.Role == domain.RoleDriver {
			driver = &m
		}
	}
	require.NotNil(t, driver)
	assert.Equal(t, domain.DriverStyle, driver.Style)
	assert.Equal(t, domain.LatLng{Lat: 5, Lng: 6}, driver.Position)
}

func TestDashboard_StatusChangeRefetchesAndLeaves(t *testing.T) {
	h := startDashboard(t, []domain.Delivery{delivery("d1", "p1", domain.StatusInTransit)})
	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))

	h.repo.set([]domain.Delivery{delivery("d1", "p1", domain.StatusDelivered)}, nil)
	require.True(t, h.channel.Deliver(ports.EventStatusChanged,
		json.RawMessage(`{"delivery_id":"d1","status":"delivered"}`)))

	require.Eventually(t, func() bool {
		return h.dash.State().Room == RoomSession{State: RoomLeft, DeliveryID: "d1"}
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.countEvents(ports.EventLeaveDeliveryRoom))

	_, invalidations := h.repo.counts()
	assert.Equal(t, 1, invalidations)
}

func TestDashboard_FetchFailureKeepsLastSnapshot(t *testing.T) {
	h := startDashboard(t, []domain.Delivery{delivery("d1", "p1", domain.StatusOpen)})
	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))

	h.repo.set(nil, errors.New("backend down"))
	h.dash.Refresh()

	require.Eventually(t, func() bool {
		calls, _ := h.repo.counts()
		return calls == 2
	}, time.Second, time.Millisecond)
	// Let the loop apply the failed result.
	require.NoError(t, h.dash.SelectPackage(context.Background(), "p1"))

	st := h.dash.State()
	assert.Len(t, st.Deliveries, 1)
	assert.Equal(t, RoomJoined, st.Room.State)
}

func TestDashboard_FetchFailureWithoutDataStaysIdle(t *testing.T) {
	h := &stubRepo{err: errors.New("backend down")}
	ch := eventchannel.NewRecordingChannel()
	dash, err := NewDashboard(DashboardDeps{
		Deliveries: h,
		Channel:    ch,
		Platform:   geolocation.NewMockLocationPlatform(),
		Logger:     quietLogger(),
	}, DashboardConfig{UserID: "u1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = dash.Run(ctx) }()

	require.Eventually(t, func() bool {
		calls, _ := h.counts()
		return calls == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, dash.SelectPackage(ctx, "p1"))

	st := dash.State()
	assert.False(t, st.Loaded)
	assert.Empty(t, st.Deliveries)
	assert.Equal(t, RoomIdle, st.Room.State)
	assert.Empty(t, ch.Emitted())
}

func TestDashboard_RestartsPositionSourceAfterError(t *testing.T) {
	h := startDashboard(t, nil)
	require.Eventually(t, func() bool { return h.platform.Active() == 1 }, time.Second, time.Millisecond)

	h.platform.Fail(errors.New("position unavailable"))

	require.Eventually(t, func() bool {
		return len(h.platform.WatchCalls()) == 2 && h.platform.Active() == 1
	}, 2*time.Second, time.Millisecond)
}

func TestDashboard_RunReleasesResources(t *testing.T) {
	h := startDashboard(t, nil)
	require.Eventually(t, func() bool { return h.platform.Active() == 1 }, time.Second, time.Millisecond)

	h.cancel()
	select {
	case <-h.done:
		assert.NoError(t, h.runErr)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}

	assert.Equal(t, 0, h.platform.Active())
	assert.True(t, h.tickStop.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, h.dash.SelectPackage(ctx, "p1"))
}

func TestNewDashboard_RequiresDeps(t *testing.T) {
	_, err := NewDashboard(DashboardDeps{}, DashboardConfig{})
	assert.Error(t, err)
}
