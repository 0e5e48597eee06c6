// Package transport defines the message contracts with the remote peer and
// delivers inbound events through a single dispatch point.
package transport

import "encoding/json"

// Inbound event names.
const (
	EventAuthorized   = "authorized"
	EventDataUpdate   = "dataUpdate"
	EventRetroUpdate  = "retroUpdate"
	EventNotification = "notification"
	EventAnnouncement = "announcement"
	EventAlarm        = "alarm"
	EventUrgentAlarm  = "urgent_alarm"
	EventClearAlarm   = "clear_alarm"
)

// Outbound event names.
const (
	EventAuthorize = "authorize"
	EventAck       = "ack"
	EventLoadRetro = "loadRetro"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Authorize is sent on (re)connection.
type Authorize struct {
	Client  string `json:"client"`
	Secret  string `json:"secret,omitempty"`
	Token   string `json:"token,omitempty"`
	History int    `json:"history"`
}

// Ack acknowledges an alarm to the peer.
type Ack struct {
	Level       int    `json:"level"`
	Group       string `json:"group"`
	SilenceTime int64  `json:"silenceTime"` // milliseconds
}

// LoadRetro requests backfill newer than the given timestamp.
type LoadRetro struct {
	LoadedMills int64 `json:"loadedMills"`
}

// Emitter sends outbound messages to the peer.
type Emitter interface {
	Emit(event string, payload any) error
}
