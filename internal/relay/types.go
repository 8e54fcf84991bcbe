package relay

import "time"

// Group key prefixes. A client connection joins its house group; a
// controller connection joins its own controller group.
const (
	houseGroupPrefix      = "house:"
	controllerGroupPrefix = "controller:"
)

// HouseGroup returns the broadcast group key for a house's clients.
func HouseGroup(houseID string) string {
	return houseGroupPrefix + houseID
}

// ControllerGroup returns the group key for a controller connection.
func ControllerGroup(controllerID string) string {
	return controllerGroupPrefix + controllerID
}

// Conn is the delivery handle for one live logical connection. The
// registry never interprets payloads; Send must be safe for concurrent
// use and must not block indefinitely (slow receivers are the transport
// layer's problem).
type Conn interface {
	Send(payload []byte) error
}

// CommandRequest is a client- or automation-issued device command before
// routing. RequesterID is nil for automation-originated commands.
type CommandRequest struct {
	HouseID      string
	ComponentID  string
	ActionTypeID string
	ActionName   string
	Parameters   map[string]any
	RequesterID  *string
}

// PendingCommand is a command awaiting hardware acknowledgment. Owned
// exclusively by the Buffer; never mutated after creation except for
// atomic removal.
type PendingCommand struct {
	CommandID    string
	HouseID      string
	ComponentID  string
	ActionTypeID string
	ActionName   string
	Parameters   map[string]any
	RequesterID  *string
	CreatedAt    time.Time
}

// Ack is an inbound acknowledgment from a controller connection.
type Ack struct {
	CommandID    string
	Success      bool
	Status       string
	Result       map[string]any
	ControllerID string
}

// AckOutcome is the result of correlating an Ack with its
// PendingCommand. Transient; it exists only for the duration of
// correlation and notification.
type AckOutcome struct {
	CommandID    string
	Success      bool
	Status       string
	Result       map[string]any
	ControllerID string
	ReceivedAt   time.Time

	// Command is the buffered command this outcome resolves.
	Command PendingCommand
}
