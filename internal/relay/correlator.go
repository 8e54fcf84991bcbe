package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hearthgrid/hearth-core/internal/activity"
)

// ActivityWriter persists correlated outcomes. Satisfied by
// activity.SQLiteRepository.
type ActivityWriter interface {
	Create(ctx context.Context, e *activity.Entry) error
}

// Telemetry receives command round-trip measurements. Satisfied by
// influxdb.Client.
type Telemetry interface {
	WriteCommandOutcome(houseID, componentID, actionName string, success bool, latency time.Duration)
}

// EventPublisher mirrors correlated outcomes to automation consumers.
// Satisfied by the MQTT ingress.
type EventPublisher interface {
	PublishHouseEvent(houseID string, payload []byte)
}

// Correlator converts an inbound acknowledgment from a controller
// connection into a resolved outcome: it takes the buffered command,
// notifies the house, writes the activity log, and feeds telemetry.
type Correlator struct {
	buffer   *Buffer
	notifier *Notifier
	activity ActivityWriter
	telem    Telemetry      // optional, may be nil
	events   EventPublisher // optional, may be nil
	logger   Logger

	now func() time.Time
}

// NewCorrelator creates a correlator over the buffer and notifier.
// Activity is required; telemetry and event mirroring are optional.
func NewCorrelator(buffer *Buffer, notifier *Notifier, activityWriter ActivityWriter) *Correlator {
	return &Correlator{
		buffer:   buffer,
		notifier: notifier,
		activity: activityWriter,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the correlator.
func (c *Correlator) SetLogger(logger Logger) {
	c.logger = logger
}

// SetTelemetry attaches an optional telemetry sink.
func (c *Correlator) SetTelemetry(t Telemetry) {
	c.telem = t
}

// SetEventPublisher attaches an optional automation event mirror.
func (c *Correlator) SetEventPublisher(p EventPublisher) {
	c.events = p
}

// Correlate resolves ack against the buffer.
//
// A blank command id is ErrMalformedAck (logged by the caller, dropped,
// never propagated to the device). A buffer miss means the ACK is late,
// duplicate, or bogus: it is dropped silently with no notification, and
// the return is nil because a benign miss is not an error. Only a hit
// produces an outcome, a notification, and an activity entry.
func (c *Correlator) Correlate(ctx context.Context, ack Ack) error {
	if ack.CommandID == "" {
		return ErrMalformedAck
	}

	cmd, ok := c.buffer.Take(ack.CommandID)
	if !ok {
		c.logger.Debug("ack dropped, no pending command",
			"command_id", ack.CommandID,
			"controller_id", ack.ControllerID,
		)
		return nil
	}

	outcome := AckOutcome{
		CommandID:    ack.CommandID,
		Success:      ack.Success,
		Status:       ack.Status,
		Result:       ack.Result,
		ControllerID: ack.ControllerID,
		ReceivedAt:   c.now(),
		Command:      cmd,
	}

	c.notifier.NotifyOutcome(outcome)
	c.mirrorOutcome(outcome)

	entry := &activity.Entry{
		HouseID:     cmd.HouseID,
		ComponentID: cmd.ComponentID,
		CommandID:   cmd.CommandID,
		ActionName:  cmd.ActionName,
		RequesterID: cmd.RequesterID,
		Success:     ack.Success,
		Status:      ack.Status,
		CreatedAt:   outcome.ReceivedAt,
	}
	if err := c.activity.Create(ctx, entry); err != nil {
		// Notification already went out; the log entry is best effort.
		c.logger.Error("writing activity entry failed",
			"command_id", cmd.CommandID,
			"error", err,
		)
	}

	if c.telem != nil {
		c.telem.WriteCommandOutcome(
			cmd.HouseID, cmd.ComponentID, cmd.ActionName,
			ack.Success, outcome.ReceivedAt.Sub(cmd.CreatedAt),
		)
	}

	c.logger.Info("command correlated",
		"command_id", cmd.CommandID,
		"component_id", cmd.ComponentID,
		"success", ack.Success,
	)

	return nil
}

// mirrorOutcome publishes the outcome to automation consumers.
func (c *Correlator) mirrorOutcome(outcome AckOutcome) {
	if c.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type":         "command_outcome",
		"command_id":   outcome.CommandID,
		"component_id": outcome.Command.ComponentID,
		"action_name":  outcome.Command.ActionName,
		"success":      outcome.Success,
		"status":       outcome.Status,
		"result":       outcome.Result,
		"timestamp":    outcome.ReceivedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	c.events.PublishHouseEvent(outcome.Command.HouseID, payload)
}
