package relay

import (
	"errors"
	"sync"
	"testing"
)

// fakeConn records sent payloads and can be told to fail.
type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeConn) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.payloads))
	copy(out, f.payloads)
	return out
}

func TestRegistry_RegisterAndBroadcast(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}

	r.Register(a, HouseGroup("house-1"))
	r.Register(b, HouseGroup("house-1"))

	r.Broadcast(HouseGroup("house-1"), []byte("hello"))

	for name, conn := range map[string]*fakeConn{"a": a, "b": b} {
		if got := conn.sent(); len(got) != 1 || string(got[0]) != "hello" {
			t.Errorf("conn %s received %v, want one \"hello\"", name, got)
		}
	}
}

func TestRegistry_BroadcastEmptyGroup(t *testing.T) {
	r := NewRegistry()
	// Silently discarded, no panic
	r.Broadcast(HouseGroup("nobody-home"), []byte("anyone?"))
}

func TestRegistry_BroadcastFailureIsolation(t *testing.T) {
	r := NewRegistry()
	bad := &fakeConn{fail: true}
	good := &fakeConn{}

	r.Register(bad, HouseGroup("house-1"))
	r.Register(good, HouseGroup("house-1"))

	r.Broadcast(HouseGroup("house-1"), []byte("update"))

	if got := good.sent(); len(got) != 1 {
		t.Errorf("healthy conn received %d payloads, want 1", len(got))
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Register(conn, HouseGroup("house-1"))
	r.Unregister(conn)
	r.Unregister(conn) // no-op
	r.Unregister(&fakeConn{}) // unknown conn, no-op

	r.Broadcast(HouseGroup("house-1"), []byte("gone"))
	if len(conn.sent()) != 0 {
		t.Error("unregistered conn still received broadcast")
	}
}

func TestRegistry_ResolveController(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register(conn, ControllerGroup("ctrl-1"))

	got, err := r.ResolveController("ctrl-1")
	if err != nil {
		t.Fatalf("ResolveController() error = %v", err)
	}
	if got != conn {
		t.Error("ResolveController() returned wrong connection")
	}
}

func TestRegistry_ResolveController_Offline(t *testing.T) {
	r := NewRegistry()

	_, err := r.ResolveController("ctrl-ghost")
	if !errors.Is(err, ErrControllerOffline) {
		t.Errorf("ResolveController() error = %v, want ErrControllerOffline", err)
	}
}

func TestRegistry_ControllerSupersession(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	fresh := &fakeConn{}

	r.Register(old, ControllerGroup("ctrl-1"))
	superseded := r.Register(fresh, ControllerGroup("ctrl-1"))

	if len(superseded) != 1 || superseded[0] != old {
		t.Fatalf("superseded = %v, want the old connection", superseded)
	}

	// The new connection is authoritative
	got, err := r.ResolveController("ctrl-1")
	if err != nil {
		t.Fatalf("ResolveController() error = %v", err)
	}
	if got != fresh {
		t.Error("ResolveController() did not return the superseding connection")
	}

	// The old handle receives no further sends
	r.Broadcast(ControllerGroup("ctrl-1"), []byte("cmd"))
	if len(old.sent()) != 0 {
		t.Error("superseded connection received a send")
	}
	if len(fresh.sent()) != 1 {
		t.Error("authoritative connection missed the send")
	}
}

func TestRegistry_SupersessionDetachesAllGroups(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	r.Register(old, ControllerGroup("ctrl-1"), HouseGroup("house-1"))

	r.Register(&fakeConn{}, ControllerGroup("ctrl-1"))

	// Detached everywhere, not just the controller group
	r.Broadcast(HouseGroup("house-1"), []byte("notice"))
	if len(old.sent()) != 0 {
		t.Error("superseded connection still in house group")
	}
}

func TestRegistry_HouseGroupsDoNotSupersede(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}

	if superseded := r.Register(a, HouseGroup("house-1")); len(superseded) != 0 {
		t.Fatalf("first client registration superseded %v", superseded)
	}
	if superseded := r.Register(b, HouseGroup("house-1")); len(superseded) != 0 {
		t.Fatalf("second client registration superseded %v", superseded)
	}
	if n := r.GroupSize(HouseGroup("house-1")); n != 2 {
		t.Errorf("GroupSize = %d, want 2", n)
	}
}

func TestRegistry_Touch(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register(conn, ControllerGroup("ctrl-1"))

	before, ok := r.LastActivity(conn)
	if !ok {
		t.Fatal("LastActivity() missing for registered conn")
	}

	r.Touch(conn)
	after, _ := r.LastActivity(conn)
	if after.Before(before) {
		t.Error("Touch() moved last activity backwards")
	}

	// Touching an unknown conn is a no-op
	stranger := &fakeConn{}
	r.Touch(stranger)
	if _, ok := r.LastActivity(stranger); ok {
		t.Error("Touch() registered an unknown conn")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := &fakeConn{}
			r.Register(conn, HouseGroup("house-1"))
			r.Broadcast(HouseGroup("house-1"), []byte("x"))
			r.Touch(conn)
			r.Unregister(conn)
		}()
	}
	wg.Wait()

	if n := r.GroupSize(HouseGroup("house-1")); n != 0 {
		t.Errorf("GroupSize = %d after all unregistered, want 0", n)
	}
}

func TestRegistry_ReRegisterNoDuplicateMembership(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}

	r.Register(c, HouseGroup("house-1"))
	r.Register(c, HouseGroup("house-1"), HouseGroup("house-2"))

	if got := len(r.membership[c]); got != 2 {
		t.Errorf("membership entries = %d, want 2", got)
	}

	// One broadcast per group, not per accumulated membership entry.
	r.Broadcast(HouseGroup("house-1"), []byte("hi"))
	if got := c.sent(); len(got) != 1 {
		t.Errorf("received %d payloads, want 1", len(got))
	}

	r.Unregister(c)
	if r.GroupSize(HouseGroup("house-1")) != 0 || r.GroupSize(HouseGroup("house-2")) != 0 {
		t.Error("Unregister() left the connection in a group")
	}
}
