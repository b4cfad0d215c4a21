package api

import (
	"context"
	"delivery-tracker/internal/adapters/geolocation"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"delivery-tracker/internal/services"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboard struct {
	state     services.DashboardState
	markers   []domain.Marker
	selected  []string
	selectErr error
	refreshes int
}

func (f *fakeDashboard) State() services.DashboardState { return f.state }
func (f *fakeDashboard) Markers() []domain.Marker       { return f.markers }
func (f *fakeDashboard) Refresh()                       { f.refreshes++ }

func (f *fakeDashboard) SelectPackage(ctx context.Context, id string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = append(f.selected, id)
	f.state.PackageID = id
	return nil
}

func newTestRouter(dash *fakeDashboard, feed *geolocation.PushPlatform) http.Handler {
	deps := RouterDeps{Dashboard: dash, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if feed != nil {
		deps.Feed = feed
	}
	return NewRouter(deps)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(&fakeDashboard{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMarkers(t *testing.T) {
	dash := &fakeDashboard{markers: []domain.Marker{
		{Role: domain.RoleOrigin, Position: domain.LatLng{Lat: 20, Lng: 10}, Style: domain.OriginStyle, Label: "Origin"},
	}}
	rec := do(t, newTestRouter(dash, nil), http.MethodGet, "/api/markers", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"markers":[{"role":"origin","lat":20,"lng":10,"color":"#0000FF","label":"Origin"}]}`,
		rec.Body.String())
}

func TestSession(t *testing.T) {
	dash := &fakeDashboard{state: services.DashboardState{
		SessionID: "s1",
		Room:      services.RoomSession{State: services.RoomJoined, DeliveryID: "d1"},
		Center:    &domain.LatLng{Lat: 1, Lng: 2},
	}}
	rec := do(t, newTestRouter(dash, nil), http.MethodGet, "/api/session", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"session_id":"s1","state":"joined","delivery_id":"d1","center":{"lat":1,"lng":2}}`,
		rec.Body.String())
}

func TestDeliveries(t *testing.T) {
	dash := &fakeDashboard{state: services.DashboardState{
		Loaded: true,
		Deliveries: []domain.Delivery{{
			ID:     "d1",
			Status: domain.StatusInTransit,
			Package: domain.Package{
				ID:           "p1",
				FromLocation: domain.Coordinates{Lon: 10, Lat: 20},
				ToLocation:   domain.Coordinates{Lon: 30, Lat: 40},
			},
		}},
	}}
	rec := do(t, newTestRouter(dash, nil), http.MethodGet, "/api/deliveries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Loaded     bool `json:"loaded"`
		Deliveries []struct {
			DeliveryID string `json:"delivery_id"`
			PackageID  string `json:"package_id"`
			Status     string `json:"status"`
			From       struct {
				Location struct{ Lat, Lng float64 } `json:"location"`
			} `json:"from"`
			Location *struct{} `json:"location"`
		} `json:"deliveries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Loaded)
	require.Len(t, body.Deliveries, 1)
	d := body.Deliveries[0]
	assert.Equal(t, "d1", d.DeliveryID)
	assert.Equal(t, "p1", d.PackageID)
	assert.Equal(t, "in-transit", d.Status)
	assert.Equal(t, 20.0, d.From.Location.Lat)
	assert.Equal(t, 10.0, d.From.Location.Lng)
	assert.Nil(t, d.Location)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSel    []string
	}{
		{"select package", `{"package_id":"p1"}`, http.StatusOK, []string{"p1"}},
		{"clear selection", `{"package_id":""}`, http.StatusOK, []string{""}},
		{"invalid json", `{broken`, http.StatusBadRequest, nil},
		{"too long", `{"package_id":"` + strings.Repeat("x", 65) + `"}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dash := &fakeDashboard{}
			rec := do(t, newTestRouter(dash, nil), http.MethodPut, "/api/selection", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantSel, dash.selected)
			if rec.Code != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestSelect_DashboardStopped(t *testing.T) {
	dash := &fakeDashboard{selectErr: context.Canceled}
	rec := do(t, newTestRouter(dash, nil), http.MethodPut, "/api/selection", `{"package_id":"p1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	dash := &fakeDashboard{}
	rec := do(t, newTestRouter(dash, nil), http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, dash.refreshes)
}

func TestDevicePosition(t *testing.T) {
	feed := geolocation.NewPushPlatform()
	h := newTestRouter(&fakeDashboard{}, feed)

	rec := do(t, h, http.MethodPost, "/api/device/position", `{"lat":1,"lng":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "no watch registered yet")

	var got []domain.Reading
	var errs []error
	_, err := feed.Watch(ports.WatchOptions{}, func(r domain.Reading) { got = append(got, r) }, func(e error) { errs = append(errs, e) })
	require.NoError(t, err)

	rec = do(t, h, http.MethodPost, "/api/device/position", `{"lat":1,"lng":2,"accuracy":5}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, got, 1)
	assert.Equal(t, domain.LatLng{Lat: 1, Lng: 2}, got[0].LatLng())

	rec = do(t, h, http.MethodPost, "/api/device/position", `{"lat":100,"lng":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/device/position", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/device/position", `{"error":"permission denied"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, errs, 1)
}

func TestDevicePosition_NotMountedWithoutFeed(t *testing.T) {
	rec := do(t, newTestRouter(&fakeDashboard{}, nil), http.MethodPost, "/api/device/position", `{"lat":1,"lng":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakePackages struct {
	pkgs   []domain.Package
	err    error
	gotFor string
}

func (f *fakePackages) FindAllForUser(ctx context.Context, userID string) ([]domain.Package, error) {
	f.gotFor = userID
	return f.pkgs, f.err
}

func TestPackages(t *testing.T) {
	pkgs := &fakePackages{pkgs: []domain.Package{{
		ID:           "p1",
		Description:  "books",
		FromUser:     "u1",
		FromLocation: domain.Coordinates{Lon: 10, Lat: 20},
		ToLocation:   domain.Coordinates{Lon: 30, Lat: 40},
	}}}
	h := NewRouter(RouterDeps{
		Dashboard: &fakeDashboard{},
		Packages:  pkgs,
		UserID:    "u1",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := do(t, h, http.MethodGet, "/api/packages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", pkgs.gotFor)

	var body struct {
		Packages []struct {
			PackageID string `json:"package_id"`
			To        struct {
				Location struct{ Lat, Lng float64 } `json:"location"`
			} `json:"to"`
		} `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Packages, 1)
	assert.Equal(t, "p1", body.Packages[0].PackageID)
	assert.Equal(t, 40.0, body.Packages[0].To.Location.Lat)
	assert.Equal(t, 30.0, body.Packages[0].To.Location.Lng)

	pkgs.err = errors.New("boom")
	rec = do(t, h, http.MethodGet, "/api/packages", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
