package session

import "github.com/backkem/matter/pkg/message"

// DefaultReplayWindowBits is the width of the sliding window kept behind
// max_seen, matching the Matter counter window size. ManagerConfig can
// override it; NewPeerCounter uses this default.
const DefaultReplayWindowBits = message.CounterWindowSize

// LocalCounter is a monotonically increasing 32-bit send counter. Value
// returns the pre-increment value; Advance is a separate step so a caller
// can read the value that will be placed on the wire before committing to
// having sent it.
type LocalCounter struct {
	inner *message.SessionCounter
}

// NewLocalCounter creates a local counter with a random 28-bit initial
// value, per the Matter counter initialization scheme.
func NewLocalCounter() *LocalCounter {
	return &LocalCounter{inner: message.NewSessionCounter()}
}

// NewLocalCounterWithValue creates a local counter starting at a specific
// value. Used for the global unencrypted counter and in tests.
func NewLocalCounterWithValue(initial uint32) *LocalCounter {
	return &LocalCounter{inner: message.NewSessionCounterWithValue(initial)}
}

// Value returns the current counter value without advancing it.
func (c *LocalCounter) Value() uint32 {
	return c.inner.Current()
}

// Advance returns the current value and increments the counter. Returns
// ErrCounterExhausted if the counter has wrapped; the session must be
// re-established when that happens.
func (c *LocalCounter) Advance() (uint32, error) {
	v, err := c.inner.Next()
	if err != nil {
		return 0, ErrCounterExhausted
	}
	return v, nil
}

// PeerCounter tracks the highest counter value received from a peer plus a
// sliding bitmap of the windowBits counters immediately below it, to detect
// replayed and out-of-order messages. Unlike a single check-and-accept call,
// it splits verification from commit so the dispatch loop can decrypt between
// the two.
type PeerCounter struct {
	maxSeen      uint32
	windowBitmap uint32
	windowBits   uint32
	haveMax      bool // has any counter ever been accepted
	synchronized bool
}

// NewPeerCounter creates a peer counter in the unsynchronized,
// trust-first-use state used by newly paired authenticated sessions before
// the counter-sync service has run, and by all unauthenticated sessions.
// Uses DefaultReplayWindowBits; see NewPeerCounterWithWindow to override.
func NewPeerCounter() *PeerCounter {
	return NewPeerCounterWithWindow(DefaultReplayWindowBits)
}

// NewPeerCounterWithWindow creates a peer counter with a non-default
// replay window width, as configured by ManagerConfig.ReplayWindowBits.
func NewPeerCounterWithWindow(windowBits uint32) *PeerCounter {
	if windowBits == 0 {
		windowBits = DefaultReplayWindowBits
	}
	return &PeerCounter{windowBits: windowBits}
}

// Synchronized reports whether the counter is synchronized: set by
// SetCounter, or by a Commit on a counter that holds no value yet. A
// counter seeded by SeedCounter stays unsynchronized until SetCounter.
func (p *PeerCounter) Synchronized() bool {
	return p.synchronized
}

// Verify checks whether counter c would be accepted, without mutating
// state. Callers must follow a successful Verify with Commit only after
// the corresponding message has been decrypted and authorized for
// delivery — never before.
func (p *PeerCounter) Verify(c uint32) error {
	if !p.synchronized {
		// The manager defers an unsynchronized authenticated session's
		// messages to the counter-sync service when one is configured; a
		// caller that reaches this path anyway gets nil for every counter,
		// so nothing is rejected until the counter is synchronized.
		return nil
	}

	if c > p.maxSeen {
		return nil
	}
	if c == p.maxSeen {
		return ErrDuplicateMessageReceived
	}

	behind := p.maxSeen - c
	if behind > p.windowBits {
		return ErrMessageCounterOutOfWindow
	}

	bit := uint32(1) << (behind - 1)
	if p.windowBitmap&bit != 0 {
		return ErrDuplicateMessageReceived
	}
	return nil
}

// VerifyOrTrustFirst behaves like Verify once synchronized. Before that —
// unauthenticated sessions, or an authenticated session that has never
// received a counter — the first call always succeeds and the caller must
// invoke SetCounter (or Commit, which has the same synchronizing effect
// on a counter that holds no value yet) with the accepted value.
func (p *PeerCounter) VerifyOrTrustFirst(c uint32) error {
	if !p.haveMax {
		return nil
	}
	return p.Verify(c)
}

// Commit records counter c as accepted: advances max_seen and shifts the
// bitmap if c is new, or sets the corresponding window bit if c fell
// inside the window. Must only be called after Verify/VerifyOrTrustFirst
// returned nil (or DuplicateMessageReceived, for the delivered-anyway
// ack-required path — recommitting a duplicate is a harmless no-op change
// to the bitmap) and the message decrypted successfully.
func (p *PeerCounter) Commit(c uint32) {
	if !p.haveMax {
		p.maxSeen = c
		p.windowBitmap = 0
		p.haveMax = true
		p.synchronized = true
		return
	}

	if c > p.maxSeen {
		shift := c - p.maxSeen
		if shift > p.windowBits {
			p.windowBitmap = 0
		} else {
			p.windowBitmap = (p.windowBitmap << shift) | (1 << (shift - 1))
		}
		p.maxSeen = c
		return
	}

	if c == p.maxSeen {
		return
	}

	behind := p.maxSeen - c
	if behind <= p.windowBits {
		p.windowBitmap |= uint32(1) << (behind - 1)
	}
}

// SetCounter forces max_seen to c, clears the window, and marks the
// counter synchronized. Used by the counter-sync service once it has
// established the peer's true counter position.
func (p *PeerCounter) SetCounter(c uint32) {
	p.maxSeen = c
	p.windowBitmap = 0
	p.haveMax = true
	p.synchronized = true
}

// SeedCounter records the initial counter value handed over by the
// pairing handshake as a baseline, without marking the counter
// synchronized. Secure dispatch still defers to the counter-sync
// service for this peer until it calls SetCounter — a freshly paired
// session is not trusted to self-certify its own starting position.
func (p *PeerCounter) SeedCounter(c uint32) {
	p.maxSeen = c
	p.windowBitmap = 0
	p.haveMax = true
}

// MaxSeen returns the highest counter value accepted so far.
func (p *PeerCounter) MaxSeen() uint32 {
	return p.maxSeen
}
