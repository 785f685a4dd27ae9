package api

import "encoding/json"

type (
	// SubscribeRequest is a WebSocket message asking to follow a session's
	// operation stream
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription narrows the stream to one session, specific
	// operation types, or both. An empty subscription receives nothing
	ClientSubscription struct {
		SessionID  SessionID   `json:"session_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}

	// SubscribedResult acknowledges a subscription and carries the current
	// session status so the client starts from a consistent point
	SubscribedResult struct {
		Type      string          `json:"type"`
		SessionID SessionID       `json:"session_id"`
		Data      json.RawMessage `json:"data,omitempty"`
		Sequence  int64           `json:"sequence"`
	}

	// WebSocketEvent is one streamed session operation
	WebSocketEvent struct {
		Type      EventType `json:"type"`
		Data      any       `json:"data,omitempty"`
		Timestamp int64     `json:"timestamp"`
		SessionID SessionID `json:"session_id"`
		Sequence  int64     `json:"sequence"`
	}
)
