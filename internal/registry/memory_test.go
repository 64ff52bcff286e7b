package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/paratransit-relay/internal/models"
)

func newRoute(id string, status models.RouteStatus) *models.Route {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	return &models.Route{
		ID: id, Status: status, Student: "S1",
		PickupLocation: "L1", DropoffLocation: "L2",
		ScheduledPickupTime: now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestUpdateRouteGuardsSourceStatus(t *testing.T) {
	m := NewMemoryRegistry()
	_ = m.CreateRoute(context.Background(), newRoute("R1", models.StatusRequested))

	r := newRoute("R1", models.StatusScheduled)
	if err := m.UpdateRoute(context.Background(), r, models.StatusScheduled); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("update from wrong source status: %v", err)
	}
	cur, _ := m.GetRoute(context.Background(), "R1")
	if cur.Status != models.StatusRequested {
		t.Fatalf("guarded update mutated record: %s", cur.Status)
	}

	if err := m.UpdateRoute(context.Background(), r, models.StatusRequested); err != nil {
		t.Fatalf("legal update failed: %v", err)
	}
	cur, _ = m.GetRoute(context.Background(), "R1")
	if cur.Status != models.StatusScheduled {
		t.Fatalf("update not applied: %s", cur.Status)
	}
}

func TestGetRouteReturnsCopy(t *testing.T) {
	m := NewMemoryRegistry()
	_ = m.CreateRoute(context.Background(), newRoute("R1", models.StatusRequested))
	a, _ := m.GetRoute(context.Background(), "R1")
	a.Status = models.StatusCompleted
	b, _ := m.GetRoute(context.Background(), "R1")
	if b.Status != models.StatusRequested {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestFindActiveRouteSkipsTerminal(t *testing.T) {
	m := NewMemoryRegistry()
	done := newRoute("R1", models.StatusCompleted)
	_ = m.CreateRoute(context.Background(), done)

	if _, err := m.FindActiveRoute(context.Background(), "S1", done.ScheduledPickupTime); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("terminal route counted as active: %v", err)
	}

	live := newRoute("R2", models.StatusScheduled)
	_ = m.CreateRoute(context.Background(), live)
	got, err := m.FindActiveRoute(context.Background(), "S1", live.ScheduledPickupTime)
	if err != nil || got.ID != "R2" {
		t.Fatalf("active route not found: %v %+v", err, got)
	}
}

// Missing users, vehicles and locations report the neutral sentinel,
// not the route one.
func TestMissingRecordSentinels(t *testing.T) {
	m := NewMemoryRegistry()
	if _, err := m.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
	if _, err := m.GetVehicle(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing vehicle: %v", err)
	}
	if _, err := m.GetLocation(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing location: %v", err)
	}
	if _, err := m.GetRoute(context.Background(), "ghost"); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("missing route: %v", err)
	}
}

// Exactly one of N concurrent transitions from the same source status
// may win; the rest must see not-found.
func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	m := NewMemoryRegistry()
	_ = m.CreateRoute(context.Background(), newRoute("R1", models.StatusScheduled))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := newRoute("R1", models.StatusEnRoute)
			if err := m.UpdateRoute(context.Background(), r, models.StatusScheduled); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}
