package relay

import (
	"log/slog"
	"sync"

	"github.com/example/paratransit-relay/internal/observability"
)

// RoomManager maps route ids to the sessions currently connected for
// that route. It is the single piece of state shared by all connection
// goroutines; one mutex guards the whole map, which is plenty at
// paratransit scale (a room holds a driver and a student).
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Session // routeID -> sessionID -> session
	logger *slog.Logger
}

func NewRoomManager(logger *slog.Logger) *RoomManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomManager{rooms: make(map[string]map[string]*Session), logger: logger}
}

// Join adds the session to the room named by its route id, creating
// the room if absent. Joining twice with the same session id is a
// no-op reconnect, never duplicated membership.
func (m *RoomManager) Join(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[s.RouteID]
	if !ok {
		room = make(map[string]*Session)
		m.rooms[s.RouteID] = room
		observability.RoomsActive.Inc()
	}
	if _, ok := room[s.ID]; ok {
		return
	}
	room[s.ID] = s
	observability.SessionsActive.Inc()
	m.logger.Info("session joined", "route", s.RouteID, "user", s.UserID, "role", s.Role)
}

// Leave removes the session and releases the room once it is empty.
// Called on every disconnect path; leaving twice is harmless.
func (m *RoomManager) Leave(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[s.RouteID]
	if !ok {
		return
	}
	if _, ok := room[s.ID]; !ok {
		return
	}
	delete(room, s.ID)
	observability.SessionsActive.Dec()
	if len(room) == 0 {
		delete(m.rooms, s.RouteID)
		observability.RoomsActive.Dec()
	}
	m.logger.Info("session left", "route", s.RouteID, "user", s.UserID)
}

// Broadcast delivers an event to every current member of the room,
// except the session named by exclude (pass "" to reach everyone).
// Delivery is at-most-once per member; a send failing because the peer
// is mid-disconnect is logged and never propagated to the caller.
func (m *RoomManager) Broadcast(routeID, event string, data any, exclude string) {
	m.mu.RLock()
	members := make([]*Session, 0, len(m.rooms[routeID]))
	for id, s := range m.rooms[routeID] {
		if id == exclude {
			continue
		}
		members = append(members, s)
	}
	m.mu.RUnlock()

	for _, s := range members {
		if err := s.Send(event, data); err != nil {
			m.logger.Warn("broadcast send failed", "route", routeID, "user", s.UserID, "error", err)
		}
	}
	observability.EventsRelayed.WithLabelValues(event).Add(float64(len(members)))
}

// Members returns the current member count of a room.
func (m *RoomManager) Members(routeID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[routeID])
}
