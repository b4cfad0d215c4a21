package deliveryapi

import (
	"context"
	"delivery-tracker/internal/domain"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const populatedDeliveries = `[
  {
    "_id": "d1",
    "status": "in-transit",
    "location": {"type": "Point", "coordinates": [11.5, 21.5]},
    "package": {
      "_id": "p1",
      "description": "books",
      "weight": 2.5,
      "from_name": "Alice",
      "from_address": "1 Main St",
      "from_location": {"type": "Point", "coordinates": [10, 20]},
      "to_name": "Bob",
      "to_address": "9 Elm St",
      "to_location": {"type": "Point", "coordinates": [30, 40]},
      "from_user": {"_id": "u1", "name": "Alice"},
      "to_user": "u2"
    }
  }
]`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/", "tok")
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestFindAllForUser_PopulatedPackage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me/delivery", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(populatedDeliveries))
	}))

	got, err := c.FindAllForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got[0]
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, "p1", d.PackageID)
	assert.Equal(t, domain.StatusInTransit, d.Status)
	assert.Equal(t, domain.Coordinates{Lon: 11.5, Lat: 21.5}, d.Location)
	assert.Equal(t, domain.LatLng{Lat: 20, Lng: 10}, d.Package.FromLocation.LatLng())
	assert.Equal(t, domain.LatLng{Lat: 40, Lng: 30}, d.Package.ToLocation.LatLng())
	assert.Equal(t, "u1", d.Package.FromUser)
	assert.Equal(t, "u2", d.Package.ToUser)
}

func TestFindAllForUser_ResolvesPackageIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me/delivery", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"d1","status":"open","package":"p1"}]`))
	})
	mux.HandleFunc("/api/users/me/package", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"p1","from_location":{"type":"Point","coordinates":[1,2]},"to_location":{"type":"Point","coordinates":[3,4]}}]`))
	})
	c := newTestClient(t, mux)

	got, err := c.FindAllForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Package.ID)
	assert.Equal(t, domain.Coordinates{Lon: 3, Lat: 4}, got[0].Package.ToLocation)
}

func TestFindAllForUser_UnknownStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"d1","status":"lost","package":null}]`))
	}))

	_, err := c.FindAllForUser(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownStatus))
}

func TestDoWithRetry_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	got, err := c.FindAllForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetry_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	_, err := c.FindAllForUser(context.Background(), "u1")
	require.Error(t, err)

	var he *httpStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Equal(t, "bad token", he.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.FindAllForUser(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())

	var he *httpStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadGateway, he.Code)
}

func TestDoWithRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	c.backoff = time.Hour

	_, err := c.FindAllForUser(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoWithRetry_PermanentErrorIsUnwrapped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := c.doWithRetry(context.Background(), func() (*http.Request, error) {
		return c.newRequest(context.Background(), http.MethodGet, c.baseURL+"/users/me/delivery")
	})
	require.Error(t, err)

	var he *httpStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "Code 403: nope", err.Error())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(" ", "tok")
	assert.Error(t, err)
	_, err = NewClient("http://x", "")
	assert.Error(t, err)
}
