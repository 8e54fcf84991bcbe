package inventory

import "time"

// Controller is a field microcontroller belonging to a house.
// It authenticates to the relay with an API key and must be approved
// before it can receive commands or report state.
type Controller struct {
	ID         string     `json:"id"`
	HouseID    string     `json:"house_id"`
	Name       string     `json:"name"`
	APIKeyHash string     `json:"-"`
	IsApproved bool       `json:"is_approved"`
	Firmware   string     `json:"firmware,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Component is a single device (light, lock, sensor) wired to a controller.
// ControllerID is nil while the component is unassigned.
type Component struct {
	ID           string    `json:"id"`
	HouseID      string    `json:"house_id"`
	ControllerID *string   `json:"controller_id,omitempty"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Pin          *int      `json:"pin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ComponentState is the last reported state of a component, stored as a
// free-form JSON document.
type ComponentState struct {
	ComponentID string         `json:"component_id"`
	State       map[string]any `json:"state"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
