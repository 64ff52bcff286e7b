package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/paratransit-relay/internal/lifecycle"
	"github.com/example/paratransit-relay/internal/models"
	"github.com/example/paratransit-relay/internal/registry"
	"github.com/example/paratransit-relay/internal/relay"
)

type stack struct {
	server *httptest.Server
	rooms  *relay.RoomManager
	svc    *lifecycle.Service
	route  *models.Route
}

// newStack builds the full relay over a seeded in-memory registry with
// one route scheduled for D1/S1 but not yet begun.
func newStack(t *testing.T) *stack {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	reg.PutUser(models.User{ID: "S1", Type: models.UserTypeStudent})
	reg.PutUser(models.User{ID: "D1", Type: models.UserTypeDriver})
	reg.PutVehicle(models.Vehicle{ID: "V1", Name: "Van 1"})
	reg.PutLocation(models.Location{ID: "L1", Name: "Library", Latitude: 33.77, Longitude: -84.39})
	reg.PutLocation(models.Location{ID: "L2", Name: "Dorms", Latitude: 33.78, Longitude: -84.40})

	svc := lifecycle.NewService(reg)
	route, err := svc.Request(context.Background(), lifecycle.RequestInput{
		Student: "S1", PickupLocation: "L1", DropoffLocation: "L2",
		ScheduledPickupTime: time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Schedule(context.Background(), route.ID, "D1", "V1"); err != nil {
		t.Fatal(err)
	}

	rooms := relay.NewRoomManager(nil)
	rl := relay.NewRelay(rooms, nil)
	handler := NewHandler(relay.NewGate(reg), rooms, rl, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &stack{server: server, rooms: rooms, svc: svc, route: route}
}

func (st *stack) dial(t *testing.T, routeID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(st.server.URL, "http") + "/?routeId=" + routeID + "&userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) relay.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env relay.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func expectDenied(t *testing.T, st *stack, routeID, userID, reason string) {
	t.Helper()
	conn := st.dial(t, routeID, userID)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
	if closeErr.Text != reason {
		t.Fatalf("close reason = %q, want %q", closeErr.Text, reason)
	}
}

func waitForMembers(t *testing.T, st *stack, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for st.rooms.Members(st.route.ID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("room never reached %d members", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, payload string) {
	t.Helper()
	frame := `{"event":"` + event + `","data":` + payload + `}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

// The end-to-end trip: connections are refused until the trip begins,
// participants are admitted afterwards, strangers never are, and chat
// flows to everyone in the room (sender included).
func TestTripConnectionLifecycle(t *testing.T) {
	st := newStack(t)

	expectDenied(t, st, st.route.ID, "D1", "Route is not en-route")

	if _, err := st.svc.BeginTrip(context.Background(), st.route.ID); err != nil {
		t.Fatal(err)
	}

	driver := st.dial(t, st.route.ID, "D1")
	student := st.dial(t, st.route.ID, "S1")
	waitForMembers(t, st, 2)

	expectDenied(t, st, st.route.ID, "stranger", "User not assigned to this route")

	send(t, driver, relay.EventSendChatMessage, `"on my way"`)

	for name, conn := range map[string]*websocket.Conn{"student": student, "driver": driver} {
		env := readEnvelope(t, conn)
		if env.Event != relay.EventReceiveChatMessage {
			t.Fatalf("%s: event = %s", name, env.Event)
		}
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil || text != "on my way" {
			t.Fatalf("%s: payload = %s", name, env.Data)
		}
	}
}

func TestHandshakeDenialReasons(t *testing.T) {
	st := newStack(t)
	expectDenied(t, st, "", "D1", "Route ID or user ID missing")
	expectDenied(t, st, "no-such-route", "D1", "Route not found")
}

func TestLocationErrorIsSenderOnly(t *testing.T) {
	st := newStack(t)
	if _, err := st.svc.BeginTrip(context.Background(), st.route.ID); err != nil {
		t.Fatal(err)
	}
	driver := st.dial(t, st.route.ID, "D1")
	student := st.dial(t, st.route.ID, "S1")
	waitForMembers(t, st, 2)

	send(t, driver, relay.EventUpdateLocation, `{"latitude": "bad", "longitude": 10}`)

	env := readEnvelope(t, driver)
	if env.Event != relay.EventLocationError {
		t.Fatalf("driver event = %s", env.Event)
	}
	var reason string
	if err := json.Unmarshal(env.Data, &reason); err != nil || reason != "Failed to update location" {
		t.Fatalf("reason = %s", env.Data)
	}

	// The student must see nothing from the bad update. Send a valid
	// one and confirm it is the next (and first) thing they receive.
	send(t, driver, relay.EventUpdateLocation, `{"latitude": 33.77, "longitude": -84.39}`)
	env = readEnvelope(t, student)
	if env.Event != relay.EventBroadcastLocation {
		t.Fatalf("student event = %s", env.Event)
	}
	var loc models.LocationUpdate
	if err := json.Unmarshal(env.Data, &loc); err != nil {
		t.Fatal(err)
	}
	if *loc.Latitude != 33.77 || *loc.Longitude != -84.39 {
		t.Fatalf("coordinates mangled: %+v", loc)
	}
}

func TestDisconnectLeavesRoom(t *testing.T) {
	st := newStack(t)
	if _, err := st.svc.BeginTrip(context.Background(), st.route.ID); err != nil {
		t.Fatal(err)
	}
	driver := st.dial(t, st.route.ID, "D1")
	student := st.dial(t, st.route.ID, "S1")
	waitForMembers(t, st, 2)

	student.Close()
	waitForMembers(t, st, 1)

	// Broadcast races with a closed peer must not disturb the sender.
	send(t, driver, relay.EventSendChatMessage, `"anyone there?"`)
	env := readEnvelope(t, driver)
	if env.Event != relay.EventReceiveChatMessage {
		t.Fatalf("driver echo event = %s", env.Event)
	}

	driver.Close()
	deadline := time.Now().Add(3 * time.Second)
	for st.rooms.Members(st.route.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room not released after last disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
