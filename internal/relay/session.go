package relay

import "time"

// Role is how the admitted user relates to the route.
type Role string

const (
	RoleDriver  Role = "driver"
	RoleStudent Role = "student"
)

// Sender is the outbound half of a live connection. The transport
// layer owns the socket; the relay only ever sees this.
type Sender interface {
	Send(event string, data any) error
}

// Session is one admitted real-time connection, bound to a route and a
// user. The room manager owns it from Join until Leave.
type Session struct {
	ID       string
	RouteID  string
	UserID   string
	Role     Role
	JoinedAt time.Time

	sender Sender
}

// Bind attaches the transport's sender. Kept separate from
// authorization so tests can authorize without a live socket.
func (s *Session) Bind(sender Sender) { s.sender = sender }

// Send forwards an event to this session's connection.
func (s *Session) Send(event string, data any) error {
	return s.sender.Send(event, data)
}
