package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/example/paratransit-relay/internal/models"
)

// AuditSink receives relayed events for out-of-band persistence
// (chat logs, position history). Best-effort; a nil sink is fine.
type AuditSink interface {
	ChatRelayed(ctx context.Context, routeID, userID string, text string)
	LocationRelayed(ctx context.Context, routeID, userID string, lat, lon float64)
}

// PositionTracker records the latest known position per route. A nil
// tracker disables tracking.
type PositionTracker interface {
	Record(ctx context.Context, routeID, userID string, role Role, lat, lon float64) error
}

// Relay validates inbound payloads and fans them out to the sender's
// room. Payload failures go back to the sender only; the broadcast
// intentionally includes the sender, matching the deployed client's
// expectations (it renders its own messages from the echo).
type Relay struct {
	Rooms    *RoomManager
	Audit    AuditSink
	Tracker  PositionTracker
	logger   *slog.Logger
	validate *validator.Validate
}

func NewRelay(rooms *RoomManager, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		Rooms:    rooms,
		logger:   logger,
		validate: validator.New(),
	}
}

// SendChatMessage handles a sendChatMessage event. The payload must be
// a non-empty JSON string; anything else earns the sender a chatError
// and nothing reaches the room.
func (r *Relay) SendChatMessage(ctx context.Context, s *Session, raw json.RawMessage) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil || text == "" {
		r.logger.Warn("invalid chat payload", "route", s.RouteID, "user", s.UserID)
		if err := s.Send(EventChatError, "Invalid message format"); err != nil {
			r.logger.Warn("chat error send failed", "user", s.UserID, "error", err)
		}
		return
	}
	r.Rooms.Broadcast(s.RouteID, EventReceiveChatMessage, text, "")
	if r.Audit != nil {
		r.Audit.ChatRelayed(ctx, s.RouteID, s.UserID, text)
	}
}

// UpdateLocation handles an updateLocation event. Coordinates must
// both be present, numeric and finite; JSON cannot carry NaN or Inf,
// but a decoded payload is still range-checked before fan-out.
func (r *Relay) UpdateLocation(ctx context.Context, s *Session, raw json.RawMessage) {
	var loc models.LocationUpdate
	if err := json.Unmarshal(raw, &loc); err != nil {
		r.locationError(s)
		return
	}
	if err := r.validate.Struct(loc); err != nil {
		r.locationError(s)
		return
	}
	lat, lon := *loc.Latitude, *loc.Longitude
	if !finite(lat) || !finite(lon) {
		r.locationError(s)
		return
	}
	r.Rooms.Broadcast(s.RouteID, EventBroadcastLocation, loc, "")
	if r.Tracker != nil {
		if err := r.Tracker.Record(ctx, s.RouteID, s.UserID, s.Role, lat, lon); err != nil {
			r.logger.Warn("position tracking failed", "route", s.RouteID, "error", err)
		}
	}
	if r.Audit != nil {
		r.Audit.LocationRelayed(ctx, s.RouteID, s.UserID, lat, lon)
	}
}

// Dispatch routes one inbound envelope to the matching handler.
// Unknown event names are dropped without error, like unsubscribed
// socket events.
func (r *Relay) Dispatch(ctx context.Context, s *Session, env Envelope) {
	switch env.Event {
	case EventSendChatMessage:
		r.SendChatMessage(ctx, s, env.Data)
	case EventUpdateLocation:
		r.UpdateLocation(ctx, s, env.Data)
	default:
		r.logger.Debug("unknown event ignored", "event", env.Event, "user", s.UserID)
	}
}

func (r *Relay) locationError(s *Session) {
	r.logger.Warn("invalid location payload", "route", s.RouteID, "user", s.UserID)
	if err := s.Send(EventLocationError, "Failed to update location"); err != nil {
		r.logger.Warn("location error send failed", "user", s.UserID, "error", err)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
