package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearthgrid/hearth-core/internal/activity"
)

// recordingActivity captures entries instead of persisting them.
type recordingActivity struct {
	mu      sync.Mutex
	entries []activity.Entry
	err     error
}

func (r *recordingActivity) Create(_ context.Context, e *activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *recordingActivity) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// recordingTelemetry captures round-trip measurements.
type recordingTelemetry struct {
	mu       sync.Mutex
	outcomes int
	latency  time.Duration
}

func (r *recordingTelemetry) WriteCommandOutcome(_, _, _ string, _ bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes++
	r.latency = latency
}

// correlatorFixture wires a correlator over a real buffer and registry
// with one connected house client.
type correlatorFixture struct {
	buffer     *Buffer
	correlator *Correlator
	client     *fakeConn
	activity   *recordingActivity
}

func newCorrelatorFixture() *correlatorFixture {
	registry := NewRegistry()
	client := &fakeConn{}
	registry.Register(client, HouseGroup("house-1"))

	buffer := NewBuffer(30 * time.Second)
	act := &recordingActivity{}
	return &correlatorFixture{
		buffer:     buffer,
		correlator: NewCorrelator(buffer, NewNotifier(registry), act),
		client:     client,
		activity:   act,
	}
}

func (f *correlatorFixture) bufferCommand() string {
	return f.buffer.Buffer(PendingCommand{
		HouseID:     "house-1",
		ComponentID: "comp-1",
		ActionName:  "turn_on",
	})
}

func TestCorrelate_MalformedAck(t *testing.T) {
	f := newCorrelatorFixture()

	err := f.correlator.Correlate(context.Background(), Ack{CommandID: ""})
	if !errors.Is(err, ErrMalformedAck) {
		t.Fatalf("Correlate() error = %v, want ErrMalformedAck", err)
	}
	if got := f.client.sent(); len(got) != 0 {
		t.Errorf("client received %d payloads, want 0", len(got))
	}
}

func TestCorrelate_StaleAckDroppedSilently(t *testing.T) {
	f := newCorrelatorFixture()

	err := f.correlator.Correlate(context.Background(), Ack{
		CommandID:    "never-buffered",
		Success:      true,
		ControllerID: "ctrl-1",
	})
	if err != nil {
		t.Fatalf("Correlate() error = %v, want nil for unknown command", err)
	}
	if got := f.client.sent(); len(got) != 0 {
		t.Errorf("client received %d payloads, want 0", len(got))
	}
	if f.activity.count() != 0 {
		t.Errorf("activity entries = %d, want 0", f.activity.count())
	}
}

func TestCorrelate_HitNotifiesAndRecords(t *testing.T) {
	f := newCorrelatorFixture()
	telem := &recordingTelemetry{}
	f.correlator.SetTelemetry(telem)

	commandID := f.bufferCommand()

	err := f.correlator.Correlate(context.Background(), Ack{
		CommandID:    commandID,
		Success:      true,
		Status:       "completed",
		Result:       map[string]any{"on": true},
		ControllerID: "ctrl-1",
	})
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}

	sent := f.client.sent()
	if len(sent) != 1 {
		t.Fatalf("client received %d payloads, want 1", len(sent))
	}
	var msg map[string]any
	if err := json.Unmarshal(sent[0], &msg); err != nil {
		t.Fatalf("decoding notification: %v", err)
	}
	if msg["type"] != "device_status_update" {
		t.Errorf("type = %v, want device_status_update", msg["type"])
	}
	if msg["command_id"] != commandID {
		t.Errorf("command_id = %v, want %v", msg["command_id"], commandID)
	}
	if msg["success"] != true {
		t.Errorf("success = %v, want true", msg["success"])
	}

	if f.activity.count() != 1 {
		t.Fatalf("activity entries = %d, want 1", f.activity.count())
	}
	entry := f.activity.entries[0]
	if entry.CommandID != commandID || entry.ActionName != "turn_on" || !entry.Success {
		t.Errorf("activity entry = %+v", entry)
	}

	if telem.outcomes != 1 {
		t.Errorf("telemetry outcomes = %d, want 1", telem.outcomes)
	}
}

func TestCorrelate_DuplicateAckIsNoop(t *testing.T) {
	f := newCorrelatorFixture()
	commandID := f.bufferCommand()

	ack := Ack{CommandID: commandID, Success: true, Status: "completed"}
	if err := f.correlator.Correlate(context.Background(), ack); err != nil {
		t.Fatalf("first Correlate() error = %v", err)
	}
	if err := f.correlator.Correlate(context.Background(), ack); err != nil {
		t.Fatalf("second Correlate() error = %v, want nil", err)
	}

	if got := f.client.sent(); len(got) != 1 {
		t.Errorf("client received %d payloads, want 1", len(got))
	}
	if f.activity.count() != 1 {
		t.Errorf("activity entries = %d, want 1", f.activity.count())
	}
}

func TestCorrelate_ActivityFailureDoesNotPropagate(t *testing.T) {
	f := newCorrelatorFixture()
	f.activity.err = errors.New("disk full")
	commandID := f.bufferCommand()

	err := f.correlator.Correlate(context.Background(), Ack{CommandID: commandID, Success: false, Status: "failed"})
	if err != nil {
		t.Fatalf("Correlate() error = %v, want nil when activity write fails", err)
	}
	// Clients were still notified.
	if got := f.client.sent(); len(got) != 1 {
		t.Errorf("client received %d payloads, want 1", len(got))
	}
}

func TestCorrelate_MirrorsOutcomeToEvents(t *testing.T) {
	f := newCorrelatorFixture()
	pub := &recordingPublisher{}
	f.correlator.SetEventPublisher(pub)
	commandID := f.bufferCommand()

	if err := f.correlator.Correlate(context.Background(), Ack{CommandID: commandID, Success: true}); err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].houseID != "house-1" {
		t.Errorf("event house = %q, want house-1", pub.events[0].houseID)
	}
	var msg map[string]any
	if err := json.Unmarshal(pub.events[0].payload, &msg); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if msg["type"] != "command_outcome" {
		t.Errorf("event type = %v, want command_outcome", msg["type"])
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	houseID string
	payload []byte
}

func (r *recordingPublisher) PublishHouseEvent(houseID string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{houseID: houseID, payload: payload})
}
