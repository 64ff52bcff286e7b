package relay

import "encoding/json"

// Event names on the wire. Client-to-server and server-to-client
// events share one envelope shape.
const (
	EventSendChatMessage    = "sendChatMessage"
	EventReceiveChatMessage = "receiveChatMessage"
	EventUpdateLocation     = "updateLocation"
	EventBroadcastLocation  = "broadcastLocation"
	EventChatError          = "chatError"
	EventLocationError      = "locationError"
)

// Envelope is the JSON frame exchanged over a connection:
// {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
