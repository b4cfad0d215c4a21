package services

import (
	"context"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/ports"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type RoomState int

const (
	RoomIdle RoomState = iota
	RoomJoined
	RoomLeft
)

func (s RoomState) String() string {
	switch s {
	case RoomIdle:
		return "idle"
	case RoomJoined:
		return "joined"
	case RoomLeft:
		return "left"
	}
	return fmt.Sprintf("RoomState(%d)", int(s))
}

// RoomSession is the controller's view of room membership. DeliveryID is
// empty in the idle state.
type RoomSession struct {
	State      RoomState
	DeliveryID string
}

// Trigger names what caused an evaluation. It only affects logging.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerSelection Trigger = "selection"
	TriggerHeartbeat Trigger = "heartbeat"
	TriggerTimer     Trigger = "timer"
)

// RoomSessionController decides when to emit join/leave room intents for the
// selected delivery.
//
// The event channel has no acknowledged subscription handshake, so intents are
// re-emitted on every evaluation and the server is expected to treat them as
// idempotent set operations. Switching to another delivery emits nothing more
// for the previous one.
type RoomSessionController struct {
	channel ports.EventChannel
	markers *MarkerRegistry
	logger  *slog.Logger
	tracer  trace.Tracer

	session RoomSession
}

func NewRoomSessionController(channel ports.EventChannel, markers *MarkerRegistry, logger *slog.Logger) *RoomSessionController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomSessionController{
		channel: channel,
		markers: markers,
		logger:  logger,
		tracer:  otel.Tracer("delivery-tracker/services"),
	}
}

// Evaluate applies the transition rule for the current selection and returns
// the resulting session. It never fails: emission errors are logged and the
// timer re-asserts the intent later.
func (c *RoomSessionController) Evaluate(ctx context.Context, selected domain.Delivery, ok bool, trigger Trigger) RoomSession {
	ctx, span := c.tracer.Start(ctx, "room.Evaluate", trace.WithAttributes(
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	if !ok {
		c.session = RoomSession{State: RoomIdle}
		return c.session
	}
	span.SetAttributes(
		attribute.String("delivery_id", selected.ID),
		attribute.String("status", string(selected.Status)),
	)

	// Join while status is outside {delivered, failed}; leave otherwise.
	if !selected.Status.IsTerminal() {
		c.placeRouteMarkers(selected.Package)
		c.emit(ctx, ports.EventJoinDeliveryRoom, ports.JoinDeliveryRoomDto{
			Event:      ports.EventJoinDeliveryRoom,
			DeliveryID: selected.ID,
		}, selected, trigger)
		c.session = RoomSession{State: RoomJoined, DeliveryID: selected.ID}
		return c.session
	}

	c.emit(ctx, ports.EventLeaveDeliveryRoom, ports.LeaveDeliveryRoomDto{
		Event:      ports.EventLeaveDeliveryRoom,
		DeliveryID: selected.ID,
	}, selected, trigger)
	c.session = RoomSession{State: RoomLeft, DeliveryID: selected.ID}
	return c.session
}

func (c *RoomSessionController) Session() RoomSession { return c.session }

func (c *RoomSessionController) placeRouteMarkers(pkg domain.Package) {
	c.markers.Upsert(domain.RoleOrigin, pkg.FromLocation.LatLng(), domain.OriginStyle, "Origin")
	c.markers.Upsert(domain.RoleDestination, pkg.ToLocation.LatLng(), domain.DestinationStyle, "Destination")
}

func (c *RoomSessionController) emit(ctx context.Context, event string, payload any, d domain.Delivery, trigger Trigger) {
	if err := c.channel.Emit(ctx, event, payload); err != nil {
		c.logger.Warn("room intent not sent",
			"event", event,
			"delivery_id", d.ID,
			"trigger", trigger,
			"err", err,
		)
		return
	}
	c.logger.Debug("room intent sent",
		"event", event,
		"delivery_id", d.ID,
		"status", d.Status,
		"trigger", trigger,
	)
}
