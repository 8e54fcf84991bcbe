package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hearthgrid/hearth-core/internal/infrastructure/mqtt"
)

// fakeBus records subscriptions and publishes, and lets tests inject
// messages into the registered handler.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	events   []busMessage
}

type busMessage struct {
	topic   string
	payload []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) PublishEvent(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busMessage{topic: topic, payload: payload})
	return nil
}

func (b *fakeBus) inject(t *testing.T, topic string, payload []byte) error {
	t.Helper()
	b.mu.Lock()
	handler, ok := b.handlers[mqtt.Topics{}.AllHouseCommands()]
	b.mu.Unlock()
	if !ok {
		t.Fatal("no handler registered for command topics")
	}
	return handler(topic, payload)
}

func TestIngress_DispatchesAutomationCommand(t *testing.T) {
	registry := NewRegistry()
	buffer := NewBuffer(30 * time.Second)
	controller := &fakeConn{}
	registry.Register(controller, ControllerGroup("ctrl-1"))

	bus := newFakeBus()
	ingress := NewIngress(bus, NewDispatcher(registry, buffer, routedStub()), 1)
	if err := ingress.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"component_id":"comp-1","action_name":"turn_on","parameters":{"level":50}}`)
	if err := bus.inject(t, "hearth/command/house-1", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if buffer.Len() != 1 {
		t.Errorf("buffer holds %d entries, want 1", buffer.Len())
	}
	if got := controller.sent(); len(got) != 1 {
		t.Errorf("controller received %d payloads, want 1", len(got))
	}
}

func TestIngress_RoutingMissSwallowed(t *testing.T) {
	registry := NewRegistry() // controller offline
	buffer := NewBuffer(30 * time.Second)

	bus := newFakeBus()
	ingress := NewIngress(bus, NewDispatcher(registry, buffer, routedStub()), 1)
	if err := ingress.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"component_id":"comp-1","action_name":"turn_on"}`)
	if err := bus.inject(t, "hearth/command/house-1", payload); err != nil {
		t.Errorf("handler error = %v, want nil for routing miss", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("buffer holds %d entries, want 0", buffer.Len())
	}
}

func TestIngress_RejectsMalformedPayload(t *testing.T) {
	registry := NewRegistry()
	buffer := NewBuffer(30 * time.Second)
	registry.Register(&fakeConn{}, ControllerGroup("ctrl-1"))

	bus := newFakeBus()
	ingress := NewIngress(bus, NewDispatcher(registry, buffer, routedStub()), 1)
	if err := ingress.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", "not-json"},
		{"missing component", `{"action_name":"turn_on"}`},
		{"missing action", `{"component_id":"comp-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := bus.inject(t, "hearth/command/house-1", []byte(tc.payload)); err == nil {
				t.Error("handler error = nil, want error")
			}
		})
	}
	if buffer.Len() != 0 {
		t.Errorf("buffer holds %d entries, want 0", buffer.Len())
	}
}

func TestIngress_PublishHouseEvent(t *testing.T) {
	bus := newFakeBus()
	ingress := NewIngress(bus, nil, 1)

	ingress.PublishHouseEvent("house-1", []byte(`{"type":"command_outcome"}`))

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.events) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.events))
	}
	if bus.events[0].topic != "hearth/event/house-1" {
		t.Errorf("topic = %q, want hearth/event/house-1", bus.events[0].topic)
	}
}
