package relay

import (
	"encoding/json"
	"time"
)

// Notifier publishes payloads to a house's connected clients through
// the registry. Delivery is fire and forget: no queuing, no retry, and
// a house with no connected clients silently discards the payload.
type Notifier struct {
	registry *Registry
}

// NewNotifier creates a notifier over the given registry.
func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

// Notify broadcasts a raw payload to every client of the house.
func (n *Notifier) Notify(houseID string, payload []byte) {
	n.registry.Broadcast(HouseGroup(houseID), payload)
}

// statusUpdateMessage is the wire shape clients receive for both
// correlated command outcomes and unsolicited device state pushes.
type statusUpdateMessage struct {
	Type        string         `json:"type"`
	ComponentID string         `json:"component_id"`
	CommandID   string         `json:"command_id,omitempty"`
	Success     *bool          `json:"success,omitempty"`
	Status      string         `json:"status,omitempty"`
	State       map[string]any `json:"state,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// NotifyOutcome publishes a correlated command outcome to the house.
func (n *Notifier) NotifyOutcome(outcome AckOutcome) {
	success := outcome.Success
	payload, err := json.Marshal(statusUpdateMessage{
		Type:        "device_status_update",
		ComponentID: outcome.Command.ComponentID,
		CommandID:   outcome.CommandID,
		Success:     &success,
		Status:      outcome.Status,
		State:       outcome.Result,
		Timestamp:   outcome.ReceivedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	n.Notify(outcome.Command.HouseID, payload)
}

// NotifyStateUpdate publishes an unsolicited device state push to the
// house, bypassing the command buffer entirely.
func (n *Notifier) NotifyStateUpdate(houseID, componentID string, state map[string]any, at time.Time) {
	payload, err := json.Marshal(statusUpdateMessage{
		Type:        "device_status_update",
		ComponentID: componentID,
		State:       state,
		Timestamp:   at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	n.Notify(houseID, payload)
}
