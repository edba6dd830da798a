package session

import (
	"time"

	"github.com/backkem/matter/pkg/fabric"
)

// Session ID constants.
const (
	// MinSessionID is the minimum valid secure session ID.
	// Session ID 0 is reserved for unsecured sessions.
	MinSessionID uint16 = 1

	// MaxSessionID is the maximum valid session ID.
	MaxSessionID uint16 = 0xFFFF

	// DefaultMaxPeerConnections is the default capacity of the
	// authenticated session table.
	DefaultMaxPeerConnections = 16
)

// PeerConnections is the fixed-capacity table of authenticated sessions
// keyed by local session ID. It is owned exclusively by the session
// manager and takes no internal lock — the manager's cooperative,
// single-threaded dispatch model is what makes that safe.
type PeerConnections struct {
	capacity int
	entries  []*PeerConnectionState
	byLocal  map[uint16]int // localSessionID -> index into entries
	nextID   uint16
}

// NewPeerConnections creates a table with the given fixed capacity.
func NewPeerConnections(capacity int) *PeerConnections {
	if capacity <= 0 {
		capacity = DefaultMaxPeerConnections
	}
	return &PeerConnections{
		capacity: capacity,
		byLocal:  make(map[uint16]int, capacity),
		nextID:   MinSessionID,
	}
}

// Capacity returns the table's fixed capacity.
func (t *PeerConnections) Capacity() int {
	return t.capacity
}

// Count returns the number of occupied slots.
func (t *PeerConnections) Count() int {
	return len(t.entries)
}

// AllocateLocalSessionID picks an unused local session ID in [1, 65535].
// Returns ErrSessionIDExhausted if every ID is currently assigned (this
// cannot happen while Count() < capacity and capacity <= 65535).
func (t *PeerConnections) AllocateLocalSessionID() (uint16, error) {
	start := t.nextID
	for {
		id := t.nextID
		t.nextID++
		if t.nextID == 0 {
			t.nextID = MinSessionID
		}
		if _, exists := t.byLocal[id]; !exists {
			return id, nil
		}
		if t.nextID == start {
			return 0, ErrSessionIDExhausted
		}
	}
}

// FindBySessionID looks up an authenticated session by local session ID.
// This is the lookup used on every secure-dispatch receive.
func (t *PeerConnections) FindBySessionID(sessionID uint16) (*PeerConnectionState, bool) {
	idx, ok := t.byLocal[sessionID]
	if !ok {
		return nil, false
	}
	return t.entries[idx], true
}

// FindByNodeID scans for the next session whose peer node ID matches,
// starting at cursor. Returns the match, the cursor to resume from on the
// next call, and whether a match was found. Iteration order is table
// order, stable as long as no insertion/removal occurs mid-scan.
func (t *PeerConnections) FindByNodeID(nodeID fabric.NodeID, cursor int) (*PeerConnectionState, int, bool) {
	for i := cursor; i < len(t.entries); i++ {
		if t.entries[i].PeerNodeID() == nodeID {
			return t.entries[i], i + 1, true
		}
	}
	return nil, len(t.entries), false
}

// FindByFabric returns every session on the given fabric.
func (t *PeerConnections) FindByFabric(fabricIndex fabric.FabricIndex) []*PeerConnectionState {
	var result []*PeerConnectionState
	for _, e := range t.entries {
		if e.FabricIndex() == fabricIndex {
			result = append(result, e)
		}
	}
	return result
}

// FindByLocalKey resolves a SessionHandle back to a live table entry. If
// peerNodeID is non-zero it must also match, guarding against a handle
// that outlived the session it named (use-after-expire: the local session
// ID might have been reassigned to a different peer by the time the
// handle is resolved again).
func (t *PeerConnections) FindByLocalKey(peerNodeID fabric.NodeID, localSessionID uint16) (*PeerConnectionState, bool) {
	st, ok := t.FindBySessionID(localSessionID)
	if !ok {
		return nil, false
	}
	if peerNodeID != fabric.NodeIDUnspecified && st.PeerNodeID() != peerNodeID {
		return nil, false
	}
	return st, true
}

// Create installs a new authenticated session at localSessionID, evicting
// an existing entry if necessary. Two distinct eviction reasons are
// possible and are reported via the same evicted return value:
//   - an existing session already occupies localSessionID (replaced,
//     per the "at most one session per local id" invariant), or
//   - the table is full and the least-recently-active entry is evicted to
//     make room.
//
// Returns ErrNoMemory only if the table has zero capacity.
func (t *PeerConnections) Create(config PeerConnectionConfig) (created *PeerConnectionState, evicted *PeerConnectionState, err error) {
	if t.capacity <= 0 {
		return nil, nil, ErrNoMemory
	}

	if idx, exists := t.byLocal[config.LocalSessionID]; exists {
		evicted = t.entries[idx]
		created, err = NewPeerConnectionState(config)
		if err != nil {
			return nil, nil, err
		}
		t.entries[idx] = created
		return created, evicted, nil
	}

	if len(t.entries) >= t.capacity {
		evictIdx := t.leastRecentlyActiveIndex()
		evicted = t.entries[evictIdx]
		delete(t.byLocal, evicted.LocalSessionID())

		created, err = NewPeerConnectionState(config)
		if err != nil {
			return nil, nil, err
		}
		t.entries[evictIdx] = created
		t.byLocal[config.LocalSessionID] = evictIdx
		return created, evicted, nil
	}

	created, err = NewPeerConnectionState(config)
	if err != nil {
		return nil, nil, err
	}
	t.entries = append(t.entries, created)
	t.byLocal[config.LocalSessionID] = len(t.entries) - 1
	return created, nil, nil
}

// leastRecentlyActiveIndex returns the index of the entry with the oldest
// LastActivityTime. Only called when the table is at capacity.
func (t *PeerConnections) leastRecentlyActiveIndex() int {
	oldest := 0
	oldestTime := t.entries[0].LastActivityTime()
	for i := 1; i < len(t.entries); i++ {
		if ts := t.entries[i].LastActivityTime(); ts.Before(oldestTime) {
			oldest = i
			oldestTime = ts
		}
	}
	return oldest
}

// MarkActive records a received message on state: it updates both the
// last-activity and the peer-active timestamps to now.
func (t *PeerConnections) MarkActive(state *PeerConnectionState) {
	state.MarkActivity(true)
}

// MarkExpired synchronously invokes onExpire(state) and then frees the
// slot. onExpire runs before removal so it can still read state's fields.
func (t *PeerConnections) MarkExpired(state *PeerConnectionState, onExpire func(*PeerConnectionState)) {
	if onExpire != nil {
		onExpire(state)
	}
	t.remove(state)
}

// ExpireInactive sweeps the table for sessions idle longer than maxIdle,
// invoking onExpire for each before freeing its slot.
func (t *PeerConnections) ExpireInactive(now time.Time, maxIdle time.Duration, onExpire func(*PeerConnectionState)) {
	var stale []*PeerConnectionState
	for _, e := range t.entries {
		if now.Sub(e.LastActivityTime()) > maxIdle {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		t.MarkExpired(e, onExpire)
	}
}

// remove deletes state's slot without invoking any callback.
func (t *PeerConnections) remove(state *PeerConnectionState) {
	idx, ok := t.byLocal[state.LocalSessionID()]
	if !ok || t.entries[idx] != state {
		return
	}
	delete(t.byLocal, state.LocalSessionID())

	last := len(t.entries) - 1
	t.entries[idx] = t.entries[last]
	t.entries = t.entries[:last]
	if idx != last {
		t.byLocal[t.entries[idx].LocalSessionID()] = idx
	}
}

// Remove deletes the session at localSessionID, if present, without
// invoking any callback. No error if absent.
func (t *PeerConnections) Remove(localSessionID uint16) {
	if st, ok := t.FindBySessionID(localSessionID); ok {
		t.remove(st)
	}
}

// ForEach calls fn for each entry. fn must not mutate the table.
func (t *PeerConnections) ForEach(fn func(*PeerConnectionState) bool) {
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
}
