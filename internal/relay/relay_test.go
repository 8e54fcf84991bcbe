package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// TestCommandRoundTrip exercises the full dispatch-ack-notify path with
// a live controller and a live house client.
func TestCommandRoundTrip(t *testing.T) {
	registry := NewRegistry()
	buffer := NewBuffer(30 * time.Second)

	controller := &fakeConn{}
	registry.Register(controller, ControllerGroup("ctrl-1"))
	client := &fakeConn{}
	registry.Register(client, HouseGroup("house-1"))

	dispatcher := NewDispatcher(registry, buffer, routedStub())
	act := &recordingActivity{}
	correlator := NewCorrelator(buffer, NewNotifier(registry), act)

	commandID, err := dispatcher.Dispatch(context.Background(), CommandRequest{
		HouseID:     "house-1",
		ComponentID: "comp-1",
		ActionName:  "turn_on",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// The controller got the command on the wire.
	delivered := controller.sent()
	if len(delivered) != 1 {
		t.Fatalf("controller received %d payloads, want 1", len(delivered))
	}
	var wire struct {
		Type      string `json:"type"`
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(delivered[0], &wire); err != nil {
		t.Fatalf("decoding device command: %v", err)
	}
	if wire.Type != "device_command" || wire.CommandID != commandID {
		t.Fatalf("device command = %+v", wire)
	}

	// The controller acknowledges with the same id.
	err = correlator.Correlate(context.Background(), Ack{
		CommandID:    wire.CommandID,
		Success:      true,
		Status:       "completed",
		ControllerID: "ctrl-1",
	})
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}

	// The client sees the resolved outcome.
	received := client.sent()
	if len(received) != 1 {
		t.Fatalf("client received %d payloads, want 1", len(received))
	}
	var update map[string]any
	if err := json.Unmarshal(received[0], &update); err != nil {
		t.Fatalf("decoding status update: %v", err)
	}
	if update["type"] != "device_status_update" {
		t.Errorf("type = %v, want device_status_update", update["type"])
	}
	if update["command_id"] != commandID {
		t.Errorf("command_id = %v, want %v", update["command_id"], commandID)
	}

	if act.count() != 1 {
		t.Errorf("activity entries = %d, want 1", act.count())
	}
	if buffer.Len() != 0 {
		t.Errorf("buffer holds %d entries after correlation, want 0", buffer.Len())
	}
}

// TestCommandTimeout verifies that an ACK arriving after the TTL is
// dropped and the client never hears about the command again.
func TestCommandTimeout(t *testing.T) {
	registry := NewRegistry()
	buffer := NewBuffer(30 * time.Second)
	base := time.Now()
	buffer.now = func() time.Time { return base }

	registry.Register(&fakeConn{}, ControllerGroup("ctrl-1"))
	client := &fakeConn{}
	registry.Register(client, HouseGroup("house-1"))

	dispatcher := NewDispatcher(registry, buffer, routedStub())
	act := &recordingActivity{}
	correlator := NewCorrelator(buffer, NewNotifier(registry), act)

	commandID, err := dispatcher.Dispatch(context.Background(), CommandRequest{
		HouseID:     "house-1",
		ComponentID: "comp-1",
		ActionName:  "turn_on",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// The hardware answers too late.
	buffer.now = func() time.Time { return base.Add(31 * time.Second) }

	err = correlator.Correlate(context.Background(), Ack{
		CommandID: commandID,
		Success:   true,
		Status:    "completed",
	})
	if err != nil {
		t.Fatalf("Correlate() error = %v, want nil for expired command", err)
	}

	if got := client.sent(); len(got) != 0 {
		t.Errorf("client received %d payloads for expired command, want 0", len(got))
	}
	if act.count() != 0 {
		t.Errorf("activity entries = %d, want 0", act.count())
	}
}
