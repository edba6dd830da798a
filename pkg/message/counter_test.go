package message

import (
	"sync"
	"testing"
)

func TestMessageCounterInit(t *testing.T) {
	// Create multiple counters and verify they're in valid range
	for i := 0; i < 100; i++ {
		c := NewMessageCounter()
		value := c.Current()

		if value < 1 || value > CounterInitMax {
			t.Errorf("Initial counter %d outside valid range [1, %d]", value, CounterInitMax)
		}
	}
}

func TestMessageCounterNext(t *testing.T) {
	c := NewMessageCounterWithValue(100)

	// Get several values
	for i := uint32(100); i < 110; i++ {
		v, err := c.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if v != i {
			t.Errorf("Next() = %d, want %d", v, i)
		}
	}
}

func TestMessageCounterConcurrent(t *testing.T) {
	c := NewMessageCounterWithValue(0)
	const numGoroutines = 100
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	values := make(chan uint32, numGoroutines*opsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				v, _ := c.Next()
				values <- v
			}
		}()
	}

	wg.Wait()
	close(values)

	// Verify all values are unique
	seen := make(map[uint32]bool)
	for v := range values {
		if seen[v] {
			t.Errorf("Duplicate counter value: %d", v)
		}
		seen[v] = true
	}

	if len(seen) != numGoroutines*opsPerGoroutine {
		t.Errorf("Got %d unique values, want %d", len(seen), numGoroutines*opsPerGoroutine)
	}
}

func TestSessionCounter(t *testing.T) {
	c := NewSessionCounter()

	// Normal operation
	for i := 0; i < 100; i++ {
		_, err := c.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
	}

	if c.IsExhausted() {
		t.Error("Counter should not be exhausted yet")
	}
}

func TestSessionCounterExhaustion(t *testing.T) {
	// Create counter near exhaustion
	c := &SessionCounter{
		MessageCounter: NewMessageCounterWithValue(0xFFFFFFFE),
		exhausted:      false,
	}

	// Get value at 0xFFFFFFFE
	v, err := c.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if v != 0xFFFFFFFE {
		t.Errorf("Next() = %08x, want %08x", v, uint32(0xFFFFFFFE))
	}

	// Get value at 0xFFFFFFFF
	v, err = c.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if v != 0xFFFFFFFF {
		t.Errorf("Next() = %08x, want %08x", v, uint32(0xFFFFFFFF))
	}

	// Counter should now be exhausted
	if !c.IsExhausted() {
		t.Error("Counter should be exhausted after wrap")
	}

	// Further calls should fail
	_, err = c.Next()
	if err != ErrCounterExhausted {
		t.Errorf("Next() error = %v, want %v", err, ErrCounterExhausted)
	}
}

func TestGlobalCounter(t *testing.T) {
	c := NewGlobalCounter()

	// Global counters should work normally
	v1, _ := c.Next()
	v2, _ := c.Next()

	if v2 != v1+1 {
		t.Errorf("Sequential counters: %d, %d - expected consecutive", v1, v2)
	}
}
