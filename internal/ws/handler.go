// Package ws is the websocket transport for the relay. One goroutine
// reads each connection; room membership is released in a defer so
// every disconnect path, graceful or not, tears down cleanly.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/paratransit-relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	// Browser clients connect from the app origin; same posture as the
	// socket server this replaces (cors origin "*").
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections, runs the handshake through the gate
// and pumps admitted sessions into the relay.
type Handler struct {
	Gate   *relay.Gate
	Rooms  *relay.RoomManager
	Relay  *relay.Relay
	Logger *slog.Logger
}

func NewHandler(gate *relay.Gate, rooms *relay.RoomManager, rl *relay.Relay, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Gate: gate, Rooms: rooms, Relay: rl, Logger: logger}
}

// ServeHTTP handles GET /ws?routeId=...&userId=...
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	routeID := r.URL.Query().Get("routeId")
	userID := r.URL.Query().Get("userId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	session, err := h.Gate.Authorize(r.Context(), routeID, userID)
	if err != nil {
		h.deny(conn, err)
		return
	}
	session.Bind(&connSender{conn: conn})

	h.Rooms.Join(session)
	defer h.Rooms.Leave(session)
	defer conn.Close()

	h.readLoop(r, session, conn)
}

func (h *Handler) readLoop(r *http.Request, session *relay.Session, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Warn("connection closed abnormally", "user", session.UserID, "error", err)
			}
			return
		}
		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.Logger.Warn("unparseable frame dropped", "user", session.UserID)
			continue
		}
		h.Relay.Dispatch(r.Context(), session, env)
	}
}

// deny reports the rejection reason and closes. Denials use the policy
// violation close code; infrastructure failures use internal error so
// clients can tell a retryable condition from a refusal.
func (h *Handler) deny(conn *websocket.Conn, err error) {
	defer conn.Close()
	code := websocket.CloseInternalServerErr
	var denied *relay.DeniedError
	if errors.As(err, &denied) {
		code = websocket.ClosePolicyViolation
	}
	h.Logger.Info("handshake denied", "reason", err.Error())
	msg := websocket.FormatCloseMessage(code, err.Error())
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}

// connSender serializes writes to one connection. gorilla permits a
// single concurrent writer, and broadcasts arrive from other
// sessions' goroutines.
type connSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connSender) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(relay.Envelope{Event: event, Data: raw})
}
