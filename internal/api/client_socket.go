package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthgrid/hearth-core/internal/auth"
	"github.com/hearthgrid/hearth-core/internal/inventory"
	"github.com/hearthgrid/hearth-core/internal/relay"
)

// clientSocket is one house client connection.
type clientSocket struct {
	*socket
	server  *Server
	houseID string
	userID  string
}

// handleClientSocket authenticates and upgrades a house client
// connection.
//
// GET /ws/house/{houseID}?token=JWT
//
// The token must verify and its subject must be a member of the house.
// Both checks happen before the upgrade, so a rejected caller never
// gets a WebSocket at all.
func (s *Server) handleClientSocket(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "houseID")

	token := r.URL.Query().Get("token")
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	member, err := s.houses.IsMember(r.Context(), houseID, claims.Subject)
	if err != nil {
		s.logger.Error("membership check failed", "house_id", houseID, "error", err)
		writeInternalError(w, "failed to verify house membership")
		return
	}
	if !member {
		writeUnauthorized(w, "not a member of this house")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &clientSocket{
		socket:  newSocket(conn, s.wsCfg, s.logger),
		server:  s,
		houseID: houseID,
		userID:  claims.Subject,
	}

	s.relay.Register(client, relay.HouseGroup(houseID))
	s.logger.Info("client connected",
		"house_id", houseID,
		"user_id", claims.Subject,
	)

	go client.writePump(s.wsCfg)
	go client.readPump()
}

// readPump runs the inbound message loop until disconnect.
func (c *clientSocket) readPump() {
	defer func() {
		c.server.relay.Unregister(c)
		c.close()
		c.server.logger.Info("client disconnected",
			"house_id", c.houseID,
			"user_id", c.userID,
		)
	}()

	c.readLoop(c.server.wsCfg, c.handleMessage)
}

// handleMessage processes one inbound client frame.
func (c *clientSocket) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeBadRequest, "invalid JSON message")
		return
	}

	switch msg.Type {
	case MsgTypeDeviceCommand:
		c.handleDeviceCommand(msg)
	case MsgTypePing:
		c.sendJSON(pongMessage{
			Type:      MsgTypePong,
			Timestamp: msg.Timestamp,
		})
	case MsgTypeStatusRequest:
		c.handleStatusRequest(msg)
	default:
		c.sendError(ErrCodeBadRequest, "unknown message type: "+msg.Type)
	}
}

// handleDeviceCommand dispatches a command and acknowledges it as
// pending. A routing miss is the one error a client hears about.
func (c *clientSocket) handleDeviceCommand(msg clientMessage) {
	if msg.ComponentID == "" || msg.ActionName == "" {
		c.sendError(ErrCodeBadRequest, "component_id and action_name are required")
		return
	}

	requester := c.userID
	commandID, err := c.server.dispatcher.Dispatch(context.Background(), relay.CommandRequest{
		HouseID:      c.houseID,
		ComponentID:  msg.ComponentID,
		ActionTypeID: msg.ActionTypeID,
		ActionName:   msg.ActionName,
		Parameters:   msg.Parameters,
		RequesterID:  &requester,
	})
	if err != nil {
		if errors.Is(err, relay.ErrRouting) {
			c.sendError("routing_error", "component is unknown or its controller is offline")
			return
		}
		c.server.logger.Error("dispatch failed",
			"house_id", c.houseID,
			"component_id", msg.ComponentID,
			"error", err,
		)
		c.sendError(ErrCodeInternal, "command could not be dispatched")
		return
	}

	c.sendJSON(commandAckMessage{
		Type:      MsgTypeCommandAck,
		CommandID: commandID,
		Status:    "pending",
		Timestamp: wireTimestamp(time.Now()),
	})
}

// handleStatusRequest answers with the last known component state.
func (c *clientSocket) handleStatusRequest(msg clientMessage) {
	if msg.ComponentID == "" {
		c.sendError(ErrCodeBadRequest, "component_id is required")
		return
	}

	state, err := c.server.inventory.GetComponentState(context.Background(), msg.ComponentID)
	if err != nil {
		if errors.Is(err, inventory.ErrComponentNotFound) {
			c.sendJSON(statusResponseMessage{
				Type:        MsgTypeStatusResponse,
				ComponentID: msg.ComponentID,
				State:       map[string]any{},
			})
			return
		}
		c.sendError(ErrCodeInternal, "component state unavailable")
		return
	}

	c.sendJSON(statusResponseMessage{
		Type:        MsgTypeStatusResponse,
		ComponentID: msg.ComponentID,
		State:       state.State,
		UpdatedAt:   wireTimestamp(state.UpdatedAt),
	})
}

// sendError sends an error message to the client.
func (c *clientSocket) sendError(code, message string) {
	c.sendJSON(errorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	})
}
