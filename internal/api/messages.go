package api

import "time"

// Wire message types exchanged over the WebSocket endpoints.
const (
	// Client to core.
	MsgTypeDeviceCommand = "device_command"
	MsgTypePing          = "ping"
	MsgTypeStatusRequest = "status_request"

	// Controller to core.
	MsgTypeCommandAck   = "command_ack"
	MsgTypeStatusUpdate = "device_status_update"
	MsgTypeHeartbeat    = "heartbeat"

	// Core to client.
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
	MsgTypeStatusResponse = "status_response"
)

// clientMessage is the envelope for everything a house client sends.
// Fields are a union across message types; unused ones stay zero.
type clientMessage struct {
	Type         string         `json:"type"`
	ComponentID  string         `json:"component_id,omitempty"`
	ActionTypeID string         `json:"action_type_id,omitempty"`
	ActionName   string         `json:"action_name,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Timestamp    string         `json:"timestamp,omitempty"`
}

// controllerMessage is the envelope for everything a controller sends.
type controllerMessage struct {
	Type        string         `json:"type"`
	CommandID   string         `json:"command_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	Success     *bool          `json:"success,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	ComponentID string         `json:"component_id,omitempty"`
	State       map[string]any `json:"state,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// commandAckMessage tells the requesting client its command was accepted
// and is now pending hardware acknowledgment.
type commandAckMessage struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// errorMessage is the error reply on a client connection.
type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// pongMessage echoes a client ping.
type pongMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// statusResponseMessage carries the last known state of a component.
type statusResponseMessage struct {
	Type        string         `json:"type"`
	ComponentID string         `json:"component_id"`
	State       map[string]any `json:"state"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// wireTimestamp formats t for the wire.
func wireTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
