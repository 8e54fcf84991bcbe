package relay

import (
	"sync"
	"time"
)

// Registry tracks live logical connections by group key so messages can
// be addressed to "all clients of house X" or "the controller owning
// component Y".
//
// Invariant: at most one authoritative connection per controller group.
// A second registration under the same controller identity supersedes
// the first; the old handle is detached and receives no further sends.
//
// All methods are safe for concurrent use; callers never lock.
type Registry struct {
	mu sync.RWMutex

	// groups maps a group key to its member connections.
	groups map[string]map[Conn]struct{}

	// membership maps a connection to the group keys it joined,
	// making Unregister O(groups of conn).
	membership map[Conn][]string

	// lastActivity tracks liveness per connection (heartbeats, reads).
	lastActivity map[Conn]time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		groups:       make(map[string]map[Conn]struct{}),
		membership:   make(map[Conn][]string),
		lastActivity: make(map[Conn]time.Time),
	}
}

// Register adds a connection under one or more group keys.
//
// If any group is a controller group that already holds a connection,
// the prior connection is detached from ALL its groups before the new
// one is added (last-registration-wins). Detached connections are
// returned so the transport layer can close them. Registering a
// connection again under a group it already joined is a no-op for that
// group.
func (r *Registry) Register(conn Conn, groups ...string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded []Conn
	for _, group := range groups {
		if !isControllerGroup(group) {
			continue
		}
		for old := range r.groups[group] {
			if old != conn {
				r.detachLocked(old)
				superseded = append(superseded, old)
			}
		}
	}

	for _, group := range groups {
		members, ok := r.groups[group]
		if !ok {
			members = make(map[Conn]struct{})
			r.groups[group] = members
		}
		if _, joined := members[conn]; joined {
			// Re-registering an existing membership must not duplicate
			// the reverse index.
			continue
		}
		members[conn] = struct{}{}
		r.membership[conn] = append(r.membership[conn], group)
	}
	r.lastActivity[conn] = time.Now()

	return superseded
}

// Unregister removes a connection from all groups. Idempotent; removing
// an unknown connection is a no-op.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(conn)
}

// detachLocked removes conn from every group it joined. Caller holds mu.
func (r *Registry) detachLocked(conn Conn) {
	for _, group := range r.membership[conn] {
		if members, ok := r.groups[group]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(r.groups, group)
			}
		}
	}
	delete(r.membership, conn)
	delete(r.lastActivity, conn)
}

// ResolveController returns the authoritative live connection for a
// controller, or ErrControllerOffline. A miss is a normal outcome,
// distinct from a transport send failure.
func (r *Registry) ResolveController(controllerID string) (Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.groups[ControllerGroup(controllerID)] {
		return conn, nil
	}
	return nil, ErrControllerOffline
}

// Broadcast delivers payload to every connection in the group.
// Best-effort: one failed send never blocks the others and never raises
// to the caller. An empty group discards the payload silently.
func (r *Registry) Broadcast(group string, payload []byte) {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.groups[group]))
	for conn := range r.groups[group] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	for _, conn := range members {
		_ = conn.Send(payload) //nolint:errcheck // Fire and forget per recipient
	}
}

// Touch refreshes the last-activity timestamp for a connection.
// Used by heartbeats and inbound reads.
func (r *Registry) Touch(conn Conn) {
	r.mu.Lock()
	if _, ok := r.membership[conn]; ok {
		r.lastActivity[conn] = time.Now()
	}
	r.mu.Unlock()
}

// LastActivity returns the last-activity timestamp for a connection and
// whether the connection is registered.
func (r *Registry) LastActivity(conn Conn) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastActivity[conn]
	return t, ok
}

// GroupSize returns the number of connections in a group.
func (r *Registry) GroupSize(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

func isControllerGroup(group string) bool {
	return len(group) > len(controllerGroupPrefix) &&
		group[:len(controllerGroupPrefix)] == controllerGroupPrefix
}
