package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/paratransit-relay/internal/models"
	"github.com/example/paratransit-relay/internal/observability"
	"github.com/example/paratransit-relay/internal/registry"
)

// DeniedError is a handshake rejection. The reason string is part of
// the wire contract: clients see it as the close reason.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

var (
	ErrMissingCredentials = &DeniedError{Reason: "Route ID or user ID missing"}
	ErrRouteNotFound      = &DeniedError{Reason: "Route not found"}
	ErrRouteNotEnRoute    = &DeniedError{Reason: "Route is not en-route"}
	ErrNotParticipant     = &DeniedError{Reason: "User not assigned to this route"}
)

// Gate authorizes handshakes against the route registry. It only
// reads; admission into a room is the caller's next step.
type Gate struct {
	Registry registry.RouteReader
}

func NewGate(reg registry.RouteReader) *Gate {
	return &Gate{Registry: reg}
}

// Authorize checks the handshake claim (routeID, userID) and returns
// an unjoined session on success. Checks run in order and stop at the
// first failure: credentials present, route exists, route is
// En-route, user is the driver or the student. Anything that is not a
// denial (registry unreachable) comes back as a plain error.
func (g *Gate) Authorize(ctx context.Context, routeID, userID string) (*Session, error) {
	if routeID == "" || userID == "" {
		observability.HandshakesDenied.WithLabelValues("missing_credentials").Inc()
		return nil, ErrMissingCredentials
	}
	route, err := g.Registry.GetRoute(ctx, routeID)
	if err != nil {
		if errors.Is(err, registry.ErrRouteNotFound) {
			observability.HandshakesDenied.WithLabelValues("route_not_found").Inc()
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	if route.Status != models.StatusEnRoute {
		observability.HandshakesDenied.WithLabelValues("not_en_route").Inc()
		return nil, ErrRouteNotEnRoute
	}
	if !route.HasParticipant(userID) {
		observability.HandshakesDenied.WithLabelValues("not_participant").Inc()
		return nil, ErrNotParticipant
	}
	role := RoleStudent
	if route.Driver == userID {
		role = RoleDriver
	}
	return &Session{
		ID:       uuid.NewString(),
		RouteID:  routeID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}, nil
}
