package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthgrid/hearth-core/internal/auth"
	"github.com/hearthgrid/hearth-core/internal/relay"
)

// controllerSocket is one field controller connection.
type controllerSocket struct {
	*socket
	server       *Server
	controllerID string
	houseID      string
}

// handleControllerSocket authenticates and upgrades a controller
// connection.
//
// GET /ws/controller/{controllerID}/{apiKey}
//
// The controller must exist, be approved, and present its exact key.
// Rejections are uniform 401s so a probing caller learns nothing about
// which check failed.
func (s *Server) handleControllerSocket(w http.ResponseWriter, r *http.Request) {
	controllerID := chi.URLParam(r, "controllerID")
	apiKey := chi.URLParam(r, "apiKey")

	ctrl, err := s.inventory.GetController(r.Context(), controllerID)
	if err != nil {
		writeUnauthorized(w, "unauthorised")
		return
	}
	if !ctrl.IsApproved {
		s.logger.Warn("unapproved controller rejected", "controller_id", controllerID)
		writeUnauthorized(w, "unauthorised")
		return
	}
	ok, err := auth.VerifyAPIKey(apiKey, ctrl.APIKeyHash)
	if err != nil || !ok {
		s.logger.Warn("controller key mismatch", "controller_id", controllerID)
		writeUnauthorized(w, "unauthorised")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	controller := &controllerSocket{
		socket:       newSocket(conn, s.wsCfg, s.logger),
		server:       s,
		controllerID: controllerID,
		houseID:      ctrl.HouseID,
	}

	// Last registration wins. A reconnecting controller displaces its
	// previous connection, which must stop receiving deliveries.
	superseded := s.relay.Register(controller, relay.ControllerGroup(controllerID))
	for _, old := range superseded {
		if prev, ok := old.(*controllerSocket); ok {
			prev.close()
		}
	}

	if err := s.inventory.TouchController(context.Background(), controllerID); err != nil {
		s.logger.Warn("marking controller online failed",
			"controller_id", controllerID,
			"error", err,
		)
	}

	s.logger.Info("controller connected",
		"controller_id", controllerID,
		"house_id", ctrl.HouseID,
		"superseded", len(superseded),
	)

	go controller.writePump(s.wsCfg)
	go controller.readPump()
}

// readPump runs the inbound message loop until disconnect.
func (c *controllerSocket) readPump() {
	defer func() {
		c.server.relay.Unregister(c)
		c.close()
		// Record the moment it went away; liveness is judged from
		// last_seen_at plus registry presence.
		if err := c.server.inventory.TouchController(context.Background(), c.controllerID); err != nil {
			c.server.logger.Debug("final controller touch failed",
				"controller_id", c.controllerID,
				"error", err,
			)
		}
		c.server.logger.Info("controller disconnected", "controller_id", c.controllerID)
	}()

	c.readLoop(c.server.wsCfg, c.handleMessage)
}

// handleMessage processes one inbound controller frame. Malformed
// frames are dropped without a reply; the hardware has nothing useful
// to do with a protocol error.
func (c *controllerSocket) handleMessage(data []byte) {
	var msg controllerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("unparseable controller frame",
			"controller_id", c.controllerID,
			"error", err,
		)
		return
	}

	c.server.relay.Touch(c)

	switch msg.Type {
	case MsgTypeCommandAck:
		c.handleCommandAck(msg)
	case MsgTypeStatusUpdate:
		c.handleStatusUpdate(msg)
	case MsgTypeHeartbeat:
		c.handleHeartbeat()
	default:
		c.server.logger.Debug("unknown controller message type",
			"controller_id", c.controllerID,
			"type", msg.Type,
		)
	}
}

// handleCommandAck feeds an acknowledgment into the correlator. Stale
// and malformed ACKs are absorbed there; nothing goes back on the wire.
func (c *controllerSocket) handleCommandAck(msg controllerMessage) {
	success := msg.Status == "success"
	if msg.Success != nil {
		success = *msg.Success
	}

	err := c.server.correlator.Correlate(context.Background(), relay.Ack{
		CommandID:    msg.CommandID,
		Success:      success,
		Status:       msg.Status,
		Result:       msg.Result,
		ControllerID: c.controllerID,
	})
	if err != nil {
		c.server.logger.Warn("ack rejected",
			"controller_id", c.controllerID,
			"error", err,
		)
	}
}

// handleStatusUpdate records an unsolicited state push and forwards it
// to the house, bypassing the command buffer entirely.
func (c *controllerSocket) handleStatusUpdate(msg controllerMessage) {
	if msg.ComponentID == "" || msg.State == nil {
		c.server.logger.Warn("status update missing component_id or state",
			"controller_id", c.controllerID,
		)
		return
	}

	ctx := context.Background()
	if err := c.server.inventory.RecordComponentState(ctx, msg.ComponentID, msg.State); err != nil {
		c.server.logger.Warn("recording component state failed",
			"component_id", msg.ComponentID,
			"error", err,
		)
	}

	c.server.notifier.NotifyStateUpdate(c.houseID, msg.ComponentID, msg.State, time.Now())
	c.writeStateMetrics(msg.ComponentID, msg.State)
}

// handleHeartbeat refreshes device liveness.
func (c *controllerSocket) handleHeartbeat() {
	if err := c.server.inventory.TouchController(context.Background(), c.controllerID); err != nil {
		c.server.logger.Debug("heartbeat touch failed",
			"controller_id", c.controllerID,
			"error", err,
		)
	}
}

// writeStateMetrics feeds numeric and boolean state fields to the
// telemetry sink, when one is configured.
func (c *controllerSocket) writeStateMetrics(componentID string, state map[string]any) {
	if c.server.metrics == nil {
		return
	}
	for field, val := range state {
		switch v := val.(type) {
		case float64:
			c.server.metrics.WriteComponentMetric(c.houseID, componentID, field, v)
		case bool:
			boolVal := 0.0
			if v {
				boolVal = 1.0
			}
			c.server.metrics.WriteComponentMetric(c.houseID, componentID, field, boolVal)
		}
	}
}
