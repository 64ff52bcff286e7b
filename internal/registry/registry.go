package registry

import (
	"context"
	"errors"
	"time"

	"github.com/example/paratransit-relay/internal/models"
)

// ErrRouteNotFound covers both an unknown route id and a route whose
// current status does not permit the attempted update. Callers cannot
// tell the two apart; the boundary deliberately conflates them.
var ErrRouteNotFound = errors.New("route not found")

// ErrRouteExists signals a duplicate non-terminal route for the same
// student and scheduled pickup time.
var ErrRouteExists = errors.New("route already exists")

// ErrNotFound reports a missing user, vehicle or location record.
var ErrNotFound = errors.New("record not found")

// RouteReader is the read-only slice of the registry the connection
// gate needs.
type RouteReader interface {
	GetRoute(ctx context.Context, id string) (*models.Route, error)
}

// Registry is the persistent record store for routes, users, vehicles
// and named locations. The real-time core only ever reads it; the
// lifecycle service also writes route records through it.
type Registry interface {
	GetRoute(ctx context.Context, id string) (*models.Route, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	GetLocation(ctx context.Context, id string) (*models.Location, error)

	CreateRoute(ctx context.Context, r *models.Route) error

	// FindActiveRoute returns a non-terminal route for the student at
	// the given pickup time, or ErrRouteNotFound.
	FindActiveRoute(ctx context.Context, student string, pickupTime time.Time) (*models.Route, error)

	// UpdateRoute writes r only if the stored status is one of from.
	// The check and the write are atomic with respect to concurrent
	// readers; on a status mismatch or unknown id it returns
	// ErrRouteNotFound and leaves the record untouched.
	UpdateRoute(ctx context.Context, r *models.Route, from ...models.RouteStatus) error
}
