// Package lifecycle owns route status transitions. Transitions are
// requested by the administrative API and applied through the registry
// with a compare-and-swap on the source status, so a route never skips
// a state under concurrent callers.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/paratransit-relay/internal/models"
	"github.com/example/paratransit-relay/internal/registry"
)

// ReferenceError reports a driver/vehicle/student/location id that did
// not resolve to a record of the expected kind. Distinct from
// registry.ErrRouteNotFound so the API can answer 400 instead of 404.
type ReferenceError struct {
	Kind string // "driver", "vehicle", "student", "location"
	ID   string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s reference not found: %s", e.Kind, e.ID)
}

// Service applies lifecycle transitions against a registry.
type Service struct {
	Registry registry.Registry
	Now      func() time.Time // test seam, defaults to time.Now
}

func NewService(reg registry.Registry) *Service {
	return &Service{Registry: reg, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestInput carries the fields of a ride request.
type RequestInput struct {
	Student             string    `json:"student" validate:"required"`
	PickupLocation      string    `json:"pickup_location" validate:"required"`
	DropoffLocation     string    `json:"dropoff_location" validate:"required"`
	ScheduledPickupTime time.Time `json:"scheduled_pickup_time" validate:"required"`
}

// Request creates a route in Requested after resolving every
// reference. A student may not hold two live routes for the same
// pickup time.
func (s *Service) Request(ctx context.Context, in RequestInput) (*models.Route, error) {
	student, err := s.Registry.GetUser(ctx, in.Student)
	if err != nil {
		return nil, &ReferenceError{Kind: "student", ID: in.Student}
	}
	if student.Type != models.UserTypeStudent {
		return nil, &ReferenceError{Kind: "student", ID: in.Student}
	}
	if _, err := s.Registry.GetLocation(ctx, in.PickupLocation); err != nil {
		return nil, &ReferenceError{Kind: "location", ID: in.PickupLocation}
	}
	if _, err := s.Registry.GetLocation(ctx, in.DropoffLocation); err != nil {
		return nil, &ReferenceError{Kind: "location", ID: in.DropoffLocation}
	}
	if _, err := s.Registry.FindActiveRoute(ctx, in.Student, in.ScheduledPickupTime); err == nil {
		return nil, registry.ErrRouteExists
	}

	now := s.now()
	r := &models.Route{
		ID:                  uuid.NewString(),
		Status:              models.StatusRequested,
		Student:             in.Student,
		PickupLocation:      in.PickupLocation,
		DropoffLocation:     in.DropoffLocation,
		ScheduledPickupTime: in.ScheduledPickupTime,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.Registry.CreateRoute(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Schedule assigns a driver and vehicle to a Requested route. The
// driver must resolve to a Driver-typed user and the vehicle must
// exist; either failing is a ReferenceError with no state change.
func (s *Service) Schedule(ctx context.Context, routeID, driverID, vehicleID string) (*models.Route, error) {
	driver, err := s.Registry.GetUser(ctx, driverID)
	if err != nil {
		return nil, &ReferenceError{Kind: "driver", ID: driverID}
	}
	if driver.Type != models.UserTypeDriver {
		return nil, &ReferenceError{Kind: "driver", ID: driverID}
	}
	if _, err := s.Registry.GetVehicle(ctx, vehicleID); err != nil {
		return nil, &ReferenceError{Kind: "vehicle", ID: vehicleID}
	}
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Driver = driverID
		r.Vehicle = vehicleID
		r.Status = models.StatusScheduled
	}, models.StatusRequested)
}

// BeginTrip moves a Scheduled route to En-route. This is the status
// the connection gate requires before admitting participants.
func (s *Service) BeginTrip(ctx context.Context, routeID string) (*models.Route, error) {
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Status = models.StatusEnRoute
		r.IsActive = true
	}, models.StatusScheduled)
}

// Pickup confirms the student boarded.
func (s *Service) Pickup(ctx context.Context, routeID string) (*models.Route, error) {
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Status = models.StatusPickedUp
	}, models.StatusEnRoute)
}

// Complete finishes the trip. En-route is also accepted so a driver
// who skipped pickup confirmation can still close out.
func (s *Service) Complete(ctx context.Context, routeID string) (*models.Route, error) {
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Status = models.StatusCompleted
		r.IsActive = false
	}, models.StatusPickedUp, models.StatusEnRoute)
}

// Cancel ends a non-terminal route, recording who asked for it.
func (s *Service) Cancel(ctx context.Context, routeID string, actor models.UserType) (*models.Route, error) {
	status := models.StatusCancelledByAdmin
	switch actor {
	case models.UserTypeDriver:
		status = models.StatusCancelledByDriver
	case models.UserTypeStudent:
		status = models.StatusCancelledByStudent
	}
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Status = status
		r.IsActive = false
	}, models.StatusRequested, models.StatusScheduled, models.StatusEnRoute, models.StatusPickedUp)
}

// MarkMissing records a no-show during an active trip.
func (s *Service) MarkMissing(ctx context.Context, routeID string) (*models.Route, error) {
	return s.transition(ctx, routeID, func(r *models.Route) {
		r.Status = models.StatusMissing
		r.IsActive = false
	}, models.StatusEnRoute, models.StatusPickedUp)
}

// transition reads the route, applies the mutation and writes it back
// pinned to the exact status observed at read time, not the whole
// legal from-set. Pinning to the observed status is what makes the
// read-modify-write safe: a concurrent transition that commits in
// between changes the stored status, the guarded write loses, and the
// stale record is never written back over the winner's. A wrong-state
// or unknown route surfaces as registry.ErrRouteNotFound either from
// the read or from the guarded write.
func (s *Service) transition(ctx context.Context, routeID string, apply func(*models.Route), from ...models.RouteStatus) (*models.Route, error) {
	r, err := s.Registry.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	observed := r.Status
	if !contains(from, observed) {
		return nil, registry.ErrRouteNotFound
	}
	apply(r)
	r.UpdatedAt = s.now()
	if err := s.Registry.UpdateRoute(ctx, r, observed); err != nil {
		return nil, err
	}
	return r, nil
}

func contains(set []models.RouteStatus, s models.RouteStatus) bool {
	for _, c := range set {
		if c == s {
			return true
		}
	}
	return false
}
