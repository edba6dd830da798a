package session

import (
	"time"

	"github.com/backkem/matter/pkg/transport"
)

// DefaultMaxUnauthenticatedSessions is the default capacity of the
// unauthenticated session table. It is kept small: these sessions only
// exist for the brief window of a PASE/CASE handshake.
const DefaultMaxUnauthenticatedSessions = 4

// UnauthenticatedSession tracks a peer address during the handshake
// window, before a PeerConnectionState exists for it. It carries no keys
// and no fabric binding.
type UnauthenticatedSession struct {
	peerAddress      transport.PeerAddress
	peerCounter      *PeerCounter
	lastActivityTime time.Time
}

func newUnauthenticatedSession(addr transport.PeerAddress, windowBits uint32) *UnauthenticatedSession {
	return &UnauthenticatedSession{
		peerAddress:      addr,
		peerCounter:      NewPeerCounterWithWindow(windowBits),
		lastActivityTime: time.Now(),
	}
}

// PeerAddress returns the address this session was allocated for.
func (u *UnauthenticatedSession) PeerAddress() transport.PeerAddress {
	return u.peerAddress
}

// PeerCounter returns the session's peer counter. Unauthenticated
// sessions are always in trust-first-use mode.
func (u *UnauthenticatedSession) PeerCounter() *PeerCounter {
	return u.peerCounter
}

// LastActivityTime returns the time of the last message seen on this
// session.
func (u *UnauthenticatedSession) LastActivityTime() time.Time {
	return u.lastActivityTime
}

func (u *UnauthenticatedSession) markActive() {
	u.lastActivityTime = time.Now()
}

// UnauthenticatedTable is the small, fixed-capacity table of
// plaintext-dispatch sessions keyed by peer address. Unlike
// PeerConnections, eviction here is always silent: an evicted
// handshake-in-progress has no upward delegate notification defined, it
// is simply restarted by the peer on its next retry. No internal lock,
// per the same cooperative single-threaded model as PeerConnections.
type UnauthenticatedTable struct {
	capacity   int
	windowBits uint32
	entries    []*UnauthenticatedSession
}

// NewUnauthenticatedTable creates a table with the given fixed capacity.
// windowBits configures the replay window of each session's peer counter
// (0 selects DefaultReplayWindowBits).
func NewUnauthenticatedTable(capacity int, windowBits uint32) *UnauthenticatedTable {
	if capacity <= 0 {
		capacity = DefaultMaxUnauthenticatedSessions
	}
	return &UnauthenticatedTable{capacity: capacity, windowBits: windowBits}
}

// Capacity returns the table's fixed capacity.
func (t *UnauthenticatedTable) Capacity() int {
	return t.capacity
}

// Count returns the number of occupied slots.
func (t *UnauthenticatedTable) Count() int {
	return len(t.entries)
}

// FindByPeerAddress looks up an existing unauthenticated session for addr.
func (t *UnauthenticatedTable) FindByPeerAddress(addr transport.PeerAddress) (*UnauthenticatedSession, bool) {
	for _, e := range t.entries {
		if e.peerAddress.Equal(addr) {
			return e, true
		}
	}
	return nil, false
}

// FindOrAllocate returns the existing session for addr, or allocates a
// new one, silently evicting the least-recently-active entry if the
// table is already at capacity.
func (t *UnauthenticatedTable) FindOrAllocate(addr transport.PeerAddress) *UnauthenticatedSession {
	if existing, ok := t.FindByPeerAddress(addr); ok {
		return existing
	}

	if len(t.entries) >= t.capacity {
		oldest := 0
		oldestTime := t.entries[0].lastActivityTime
		for i := 1; i < len(t.entries); i++ {
			if t.entries[i].lastActivityTime.Before(oldestTime) {
				oldest = i
				oldestTime = t.entries[i].lastActivityTime
			}
		}
		t.entries[oldest] = newUnauthenticatedSession(addr, t.windowBits)
		return t.entries[oldest]
	}

	session := newUnauthenticatedSession(addr, t.windowBits)
	t.entries = append(t.entries, session)
	return session
}

// MarkActive updates session's last-activity timestamp to now.
func (t *UnauthenticatedTable) MarkActive(session *UnauthenticatedSession) {
	session.markActive()
}

// Remove deletes session from the table, if present.
func (t *UnauthenticatedTable) Remove(session *UnauthenticatedSession) {
	for i, e := range t.entries {
		if e == session {
			last := len(t.entries) - 1
			t.entries[i] = t.entries[last]
			t.entries = t.entries[:last]
			return
		}
	}
}
