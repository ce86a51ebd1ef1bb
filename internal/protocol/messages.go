// Package protocol defines the WebSocket message types and structures used
// between clients and the realtime presence gateway. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeHello      = "hello"
	TypeJoinEvent  = "join_event"
	TypeLeaveEvent = "leave_event"
	TypeHeartbeat  = "heartbeat"
	TypePing       = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeEventJoined    = "event_joined"
	TypeAttendeeUpdate = "attendee_update"
	TypeSocialsUpdate  = "socials_update"
	TypePresenceUpdate = "presence_update"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// HelloMsg is sent by the client to associate its authenticated user ID with
// the gateway session.
type HelloMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// JoinEventMsg is sent by the client to enter an event room and start
// receiving attendee, social, and presence updates for it.
type JoinEventMsg struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

// LeaveEventMsg is sent by the client to leave the current event room.
type LeaveEventMsg struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

// HeartbeatMsg is sent periodically by the client to keep its presence
// record fresh while viewing an event.
type HeartbeatMsg struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

// PingMsg is the application-level keepalive request.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent once after the WebSocket upgrade completes.
type SessionCreatedMsg struct {
	SessionID string `json:"session_id"`
}

// EventJoinedMsg confirms room entry and carries the current online count.
type EventJoinedMsg struct {
	EventID     string `json:"event_id"`
	OnlineCount int    `json:"online_count"`
}

// AttendeeUpdateMsg notifies room members that the attendee list changed.
type AttendeeUpdateMsg struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Action  string `json:"action"` // "join" or "leave"
}

// SocialsUpdateMsg notifies room members that someone's visible socials
// changed; clients re-fetch via the API.
type SocialsUpdateMsg struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// PresenceUpdateMsg notifies room members of an online/offline transition.
type PresenceUpdateMsg struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Online  bool   `json:"online"`
}

// RateLimitedMsg is sent when the client has been rate-limited.
type RateLimitedMsg struct {
	RetryAfter int `json:"retry_after"`
}

// ErrorMsg communicates an error condition to the client.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct{}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeHello:
		var m HelloMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinEvent:
		var m JoinEventMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveEvent:
		var m LeaveEventMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeHeartbeat:
		var m HeartbeatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
