// Package deliveryapi reads deliveries and packages from the tracking
// backend's REST API on behalf of the authenticated user.
package deliveryapi

import (
	"context"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client implements ports.DeliveryRepository and ports.PackageRepository.
//
// The backend scopes both collections to the bearer token, so the userID
// argument is only used for tracing. Safe for concurrent use.
type Client struct {
	session *http.Client
	baseURL string
	token   string
	backoff time.Duration
	tracer  trace.Tracer
}

func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("delivery api: base url is empty")
	}
	if token == "" {
		return nil, errors.New("delivery api: access token is empty")
	}

	return &Client{
		session: &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		token:   token,
		backoff: initialBackoff,
		tracer:  otel.Tracer("delivery-tracker/deliveryapi"),
	}, nil
}

// Return every delivery the token's user takes part in, packages populated.
func (c *Client) FindAllForUser(ctx context.Context, userID string) (_ []domain.Delivery, err error) {
	defer obs.Time(ctx, "deliveryapi.FindAllForUser")(&err)

	ctx, span := c.tracer.Start(ctx, "deliveryapi.FindAllForUser",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var docs []deliveryDto
	if err := c.getJSON(ctx, "/users/me/delivery", &docs); err != nil {
		return nil, fmt.Errorf("find deliveries: %w", err)
	}

	// Only fetch packages when some delivery references its package by id.
	var pkgs map[string]domain.Package
	for _, d := range docs {
		if raw := strings.TrimSpace(string(d.Package)); strings.HasPrefix(raw, `"`) {
			list, err := c.FindPackagesForUser(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("find deliveries: resolve packages: %w", err)
			}
			pkgs = make(map[string]domain.Package, len(list))
			for _, p := range list {
				pkgs[p.ID] = p
			}
			break
		}
	}

	out := make([]domain.Delivery, 0, len(docs))
	for _, d := range docs {
		del, err := d.toDomain(pkgs)
		if err != nil {
			return nil, fmt.Errorf("find deliveries: %w", err)
		}
		out = append(out, del)
	}
	span.SetAttributes(attribute.Int("deliveries", len(out)))

	return out, nil
}

// Return every package the token's user sends or receives.
func (c *Client) FindPackagesForUser(ctx context.Context, userID string) (_ []domain.Package, err error) {
	defer obs.Time(ctx, "deliveryapi.FindPackagesForUser")(&err)

	var docs []packageDto
	if err := c.getJSON(ctx, "/users/me/package", &docs); err != nil {
		return nil, fmt.Errorf("find packages: %w", err)
	}

	out := make([]domain.Package, 0, len(docs))
	for _, d := range docs {
		p, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("find packages: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Packages adapts the client to ports.PackageRepository.
func (c *Client) Packages() PackageReader { return PackageReader{c} }

type PackageReader struct{ c *Client }

func (p PackageReader) FindAllForUser(ctx context.Context, userID string) ([]domain.Package, error) {
	return p.c.FindPackagesForUser(ctx, userID)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, url)
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}
