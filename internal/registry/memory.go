package registry

import (
	"context"
	"sync"
	"time"

	"github.com/example/paratransit-relay/internal/models"
)

// MemoryRegistry is the in-process fallback store. Safe for concurrent
// use; route updates hold the write lock across the status check and
// the write, which is what makes transitions atomic here.
type MemoryRegistry struct {
	mu        sync.RWMutex
	routes    map[string]models.Route
	users     map[string]models.User
	vehicles  map[string]models.Vehicle
	locations map[string]models.Location
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		routes:    make(map[string]models.Route),
		users:     make(map[string]models.User),
		vehicles:  make(map[string]models.Vehicle),
		locations: make(map[string]models.Location),
	}
}

// Seed helpers for wiring and tests.

func (m *MemoryRegistry) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryRegistry) PutVehicle(v models.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
}

func (m *MemoryRegistry) PutLocation(l models.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[l.ID] = l
}

func (m *MemoryRegistry) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}
	out := r
	return &out, nil
}

func (m *MemoryRegistry) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (m *MemoryRegistry) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := v
	return &out, nil
}

func (m *MemoryRegistry) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := l
	return &out, nil
}

func (m *MemoryRegistry) CreateRoute(ctx context.Context, r *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[r.ID]; ok {
		return ErrRouteExists
	}
	m.routes[r.ID] = *r
	return nil
}

func (m *MemoryRegistry) FindActiveRoute(ctx context.Context, student string, pickupTime time.Time) (*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.routes {
		if r.Student == student && r.ScheduledPickupTime.Equal(pickupTime) && !r.Status.Terminal() {
			out := r
			return &out, nil
		}
	}
	return nil, ErrRouteNotFound
}

func (m *MemoryRegistry) UpdateRoute(ctx context.Context, r *models.Route, from ...models.RouteStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.routes[r.ID]
	if !ok {
		return ErrRouteNotFound
	}
	if !statusIn(cur.Status, from) {
		return ErrRouteNotFound
	}
	m.routes[r.ID] = *r
	return nil
}

func statusIn(s models.RouteStatus, set []models.RouteStatus) bool {
	for _, c := range set {
		if s == c {
			return true
		}
	}
	return false
}
