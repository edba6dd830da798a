package message

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// MessageCounter manages outgoing message counter values.
// It is safe for concurrent use.
type MessageCounter struct {
	value uint32
	mu    sync.Mutex
}

// NewMessageCounter creates a new message counter initialized with a random value.
// Per Spec 4.6.1.1, counters are initialized to random values in [1, 2^28].
func NewMessageCounter() *MessageCounter {
	return &MessageCounter{
		value: randomCounterInit(),
	}
}

// NewMessageCounterWithValue creates a counter with a specific initial value.
// Used for testing or restoring persisted counters.
func NewMessageCounterWithValue(initial uint32) *MessageCounter {
	return &MessageCounter{
		value: initial,
	}
}

// Next returns the next counter value and increments the internal counter.
// The error is always nil: this counter does not detect overflow
// (SessionCounter.Next does).
func (c *MessageCounter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.value
	c.value++

	// Note: Overflow detection is caller's responsibility for session counters.
	// Group counters are allowed to roll over per spec.

	return current, nil
}

// Current returns the current counter value without incrementing.
func (c *MessageCounter) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// randomCounterInit generates a random initial counter value.
// Per spec: Crypto_DRBG(len = 28) + 1, giving range [1, 2^28].
func randomCounterInit() uint32 {
	var buf [4]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// Fallback to 1 if random fails (should never happen)
		return 1
	}

	// Mask to 28 bits and add 1
	value := binary.LittleEndian.Uint32(buf[:])
	value = (value & (CounterInitMax - 1)) + 1

	return value
}

// GlobalCounter represents a global message counter that persists across sessions.
// Used for unencrypted messages and group messages.
type GlobalCounter struct {
	*MessageCounter
}

// NewGlobalCounter creates a new global counter.
func NewGlobalCounter() *GlobalCounter {
	return &GlobalCounter{
		MessageCounter: NewMessageCounter(),
	}
}

// SessionCounter represents a per-session message counter.
// It tracks whether the counter has overflowed (which invalidates the session).
type SessionCounter struct {
	*MessageCounter
	exhausted bool
}

// NewSessionCounter creates a new session counter.
func NewSessionCounter() *SessionCounter {
	return &SessionCounter{
		MessageCounter: NewMessageCounter(),
		exhausted:      false,
	}
}

// NewSessionCounterWithValue creates a session counter with a specific initial value.
// Used for testing or restoring persisted counters.
func NewSessionCounterWithValue(initial uint32) *SessionCounter {
	return &SessionCounter{
		MessageCounter: NewMessageCounterWithValue(initial),
		exhausted:      false,
	}
}

// Next returns the next counter value.
// Returns ErrCounterExhausted if the counter has wrapped (session must be re-established).
func (c *SessionCounter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exhausted {
		return 0, ErrCounterExhausted
	}

	current := c.value
	c.value++

	// Check for wrap-around
	if c.value == 0 {
		c.exhausted = true
	}

	return current, nil
}

// IsExhausted returns true if the counter has wrapped.
func (c *SessionCounter) IsExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}
