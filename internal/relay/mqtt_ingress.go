package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearthgrid/hearth-core/internal/infrastructure/mqtt"
)

// MessageBus is the slice of the MQTT client the ingress needs.
// Satisfied by mqtt.Client.
type MessageBus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishEvent(topic string, payload []byte) error
}

// Ingress feeds automation-originated commands from MQTT into the
// dispatcher and mirrors house events back out. Commands arriving this
// way carry no requester: RequesterID stays nil.
type Ingress struct {
	bus        MessageBus
	dispatcher *Dispatcher
	qos        byte
	logger     Logger
}

// NewIngress creates the automation ingress.
func NewIngress(bus MessageBus, dispatcher *Dispatcher, qos byte) *Ingress {
	return &Ingress{
		bus:        bus,
		dispatcher: dispatcher,
		qos:        qos,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the ingress.
func (i *Ingress) SetLogger(logger Logger) {
	i.logger = logger
}

// ingressCommand is the payload automations publish to
// hearth/command/{house_id}. Same shape as a client device_command.
type ingressCommand struct {
	ComponentID  string         `json:"component_id"`
	ActionTypeID string         `json:"action_type_id"`
	ActionName   string         `json:"action_name"`
	Parameters   map[string]any `json:"parameters"`
}

// Start subscribes to the command topics for all houses.
func (i *Ingress) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AllHouseCommands()
	err := i.bus.Subscribe(topic, i.qos, func(topic string, payload []byte) error {
		return i.handleCommand(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}
	return nil
}

// handleCommand dispatches one automation command. Routing misses are
// logged, not surfaced; there is no requester to tell.
func (i *Ingress) handleCommand(ctx context.Context, topic string, payload []byte) error {
	houseID := mqtt.HouseIDFromCommandTopic(topic)
	if houseID == "" {
		return fmt.Errorf("unparseable command topic %q", topic)
	}

	var cmd ingressCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding automation command: %w", err)
	}
	if cmd.ComponentID == "" || cmd.ActionName == "" {
		return errors.New("automation command missing component_id or action_name")
	}

	commandID, err := i.dispatcher.Dispatch(ctx, CommandRequest{
		HouseID:      houseID,
		ComponentID:  cmd.ComponentID,
		ActionTypeID: cmd.ActionTypeID,
		ActionName:   cmd.ActionName,
		Parameters:   cmd.Parameters,
		RequesterID:  nil,
	})
	if err != nil {
		if errors.Is(err, ErrRouting) {
			i.logger.Warn("automation command unroutable",
				"house_id", houseID,
				"component_id", cmd.ComponentID,
				"error", err,
			)
			return nil
		}
		return err
	}

	i.logger.Debug("automation command dispatched",
		"house_id", houseID,
		"command_id", commandID,
	)
	return nil
}

// PublishHouseEvent mirrors a house event to automation consumers.
// Implements EventPublisher. Failures are logged and swallowed;
// mirroring never sits on the dispatch path.
func (i *Ingress) PublishHouseEvent(houseID string, payload []byte) {
	topic := mqtt.Topics{}.HouseEvent(houseID)
	if err := i.bus.PublishEvent(topic, payload); err != nil {
		i.logger.Warn("mirroring house event failed",
			"house_id", houseID,
			"error", err,
		)
	}
}
