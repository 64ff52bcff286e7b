package models

import "time"

// RouteStatus is the lifecycle state of a route. The wire values match
// the record store contents, so keep them stable.
type RouteStatus string

const (
	StatusRequested          RouteStatus = "Requested"
	StatusScheduled          RouteStatus = "Scheduled"
	StatusEnRoute            RouteStatus = "En-route"
	StatusPickedUp           RouteStatus = "Picked-up"
	StatusCompleted          RouteStatus = "Completed"
	StatusMissing            RouteStatus = "Missing"
	StatusCancelledByDriver  RouteStatus = "Cancelled-by-driver"
	StatusCancelledByStudent RouteStatus = "Cancelled-by-student"
	StatusCancelledByAdmin   RouteStatus = "Cancelled-by-admin"
)

// Terminal reports whether no further transitions are possible.
func (s RouteStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMissing,
		StatusCancelledByDriver, StatusCancelledByStudent, StatusCancelledByAdmin:
		return true
	}
	return false
}

// UserType discriminates participants. Matches the record store's user
// "type" field.
type UserType string

const (
	UserTypeStudent UserType = "Student"
	UserTypeDriver  UserType = "Driver"
	UserTypeAdmin   UserType = "Admin"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Type  UserType `json:"type"`
}

type Vehicle struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Location is a named pickup/dropoff point.
type Location struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route is one scheduled or active trip. Driver and Vehicle are empty
// until the route is scheduled.
type Route struct {
	ID                  string      `json:"id"`
	Status              RouteStatus `json:"status"`
	Student             string      `json:"student"`
	Driver              string      `json:"driver,omitempty"`
	Vehicle             string      `json:"vehicle,omitempty"`
	PickupLocation      string      `json:"pickup_location"`
	DropoffLocation     string      `json:"dropoff_location"`
	ScheduledPickupTime time.Time   `json:"scheduled_pickup_time"`
	IsActive            bool        `json:"is_active"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// HasParticipant reports whether userID is the assigned driver or the
// student on this route.
func (r *Route) HasParticipant(userID string) bool {
	return userID != "" && (r.Driver == userID || r.Student == userID)
}

// ChatMessage is the ephemeral chat relay payload.
type ChatMessage struct {
	Text string `json:"text" validate:"required"`
}

// LocationUpdate is the ephemeral position relay payload. Pointers so
// a missing field is distinguishable from zero degrees.
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}
