package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearthgrid/hearth-core/internal/inventory"
)

// Logger is the logging interface relay components use. Compatible with
// logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ComponentRouter resolves a component to its approved controller.
// Satisfied by inventory.Registry.
type ComponentRouter interface {
	RouteComponent(ctx context.Context, componentID string) (*inventory.Component, *inventory.Controller, error)
}

// Dispatcher turns a command request into a buffered command id and a
// delivery to the correct controller connection, as one coordinated
// step.
type Dispatcher struct {
	registry *Registry
	buffer   *Buffer
	router   ComponentRouter
	logger   Logger
}

// NewDispatcher creates a dispatcher over the given registry, buffer,
// and component router.
func NewDispatcher(registry *Registry, buffer *Buffer, router ComponentRouter) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		buffer:   buffer,
		router:   router,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// deviceCommandMessage is the wire payload delivered to a controller.
type deviceCommandMessage struct {
	Type         string         `json:"type"`
	CommandID    string         `json:"command_id"`
	ComponentID  string         `json:"component_id"`
	ActionTypeID string         `json:"action_type_id,omitempty"`
	ActionName   string         `json:"action_name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// Dispatch routes req to its controller and returns the command id the
// caller should treat as pending.
//
// Routing is validated before anything is buffered: an unknown or
// unassigned component, an unapproved controller, or a controller with
// no live connection all fail with ErrRouting and leave the buffer
// untouched. A transport failure after buffering is the accepted silent
// timeout mode; the entry simply expires.
func (d *Dispatcher) Dispatch(ctx context.Context, req CommandRequest) (string, error) {
	component, controller, err := d.router.RouteComponent(ctx, req.ComponentID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRouting, err)
	}

	// A client may only command components of the house it connected to.
	if req.HouseID != "" && component.HouseID != req.HouseID {
		return "", fmt.Errorf("%w: component %s not in house %s", ErrRouting, req.ComponentID, req.HouseID)
	}

	conn, err := d.registry.ResolveController(controller.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRouting, err)
	}

	commandID := d.buffer.Buffer(PendingCommand{
		HouseID:      component.HouseID,
		ComponentID:  req.ComponentID,
		ActionTypeID: req.ActionTypeID,
		ActionName:   req.ActionName,
		Parameters:   req.Parameters,
		RequesterID:  req.RequesterID,
	})

	payload, err := json.Marshal(deviceCommandMessage{
		Type:         "device_command",
		CommandID:    commandID,
		ComponentID:  req.ComponentID,
		ActionTypeID: req.ActionTypeID,
		ActionName:   req.ActionName,
		Parameters:   req.Parameters,
	})
	if err != nil {
		// Buffered entry expires via TTL; nothing to roll back.
		return commandID, fmt.Errorf("encoding device command: %w", err)
	}

	if err := conn.Send(payload); err != nil {
		// Accepted silent-timeout mode: the entry stays buffered and
		// expires if no ACK ever arrives.
		d.logger.Warn("device command delivery failed",
			"command_id", commandID,
			"controller_id", controller.ID,
			"error", err,
		)
	}

	d.logger.Debug("command dispatched",
		"command_id", commandID,
		"component_id", req.ComponentID,
		"controller_id", controller.ID,
	)

	return commandID, nil
}
