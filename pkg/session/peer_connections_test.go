package session

import (
	"net"
	"testing"
	"time"

	"github.com/backkem/matter/pkg/fabric"
	"github.com/backkem/matter/pkg/transport"
)

func testPeerAddr(port int) transport.PeerAddress {
	return transport.NewUDPPeerAddress(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
}

func testConnectionConfig(localID uint16, nodeID fabric.NodeID, port int) PeerConnectionConfig {
	return PeerConnectionConfig{
		SessionType:    SessionTypeCASE,
		Role:           SessionRoleInitiator,
		LocalSessionID: localID,
		PeerSessionID:  localID + 1000,
		I2RKey:         make([]byte, SessionKeySize),
		R2IKey:         make([]byte, SessionKeySize),
		FabricIndex:    fabric.FabricIndexMin,
		PeerNodeID:     nodeID,
		LocalNodeID:    1,
		PeerAddress:    testPeerAddr(port),
		Params:         DefaultParams(),
	}
}

func TestPeerConnections_CreateAndFind(t *testing.T) {
	table := NewPeerConnections(4)

	st, evicted, err := table.Create(testConnectionConfig(1, 42, 5001))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if evicted != nil {
		t.Fatalf("Create() on empty table evicted %v, want nil", evicted)
	}

	found, ok := table.FindBySessionID(1)
	if !ok || found != st {
		t.Fatalf("FindBySessionID(1) = %v, %v, want %v, true", found, ok, st)
	}
}

func TestPeerConnections_CreateReplacesSameLocalID(t *testing.T) {
	table := NewPeerConnections(4)

	first, _, err := table.Create(testConnectionConfig(1, 42, 5001))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second, evicted, err := table.Create(testConnectionConfig(1, 43, 5002))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if evicted != first {
		t.Fatalf("Create() at same local id evicted %v, want %v", evicted, first)
	}
	if table.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", table.Count())
	}

	found, ok := table.FindBySessionID(1)
	if !ok || found != second {
		t.Fatalf("FindBySessionID(1) should resolve to the replacement session")
	}
}

func TestPeerConnections_CreateEvictsLeastRecentlyActiveWhenFull(t *testing.T) {
	table := NewPeerConnections(2)

	first, _, err := table.Create(testConnectionConfig(1, 42, 5001))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	_, _, err = table.Create(testConnectionConfig(2, 43, 5002))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// first is the least-recently-active entry; inserting a third session
	// must evict it.
	_, evicted, err := table.Create(testConnectionConfig(3, 44, 5003))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if evicted != first {
		t.Fatalf("Create() on full table evicted %v, want %v", evicted, first)
	}
	if table.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", table.Count())
	}
	if _, ok := table.FindBySessionID(1); ok {
		t.Fatal("evicted session should no longer be found")
	}
}

func TestPeerConnections_FindByNodeIDCursor(t *testing.T) {
	table := NewPeerConnections(4)
	table.Create(testConnectionConfig(1, 42, 5001))
	table.Create(testConnectionConfig(2, 42, 5002))
	table.Create(testConnectionConfig(3, 43, 5003))

	var matches []uint16
	cursor := 0
	for {
		st, next, found := table.FindByNodeID(42, cursor)
		if !found {
			break
		}
		matches = append(matches, st.LocalSessionID())
		cursor = next
	}

	if len(matches) != 2 {
		t.Fatalf("found %d sessions for node 42, want 2", len(matches))
	}
}

func TestPeerConnections_FindByFabric(t *testing.T) {
	table := NewPeerConnections(4)
	table.Create(testConnectionConfig(1, 42, 5001))
	table.Create(testConnectionConfig(2, 43, 5002))

	sessions := table.FindByFabric(fabric.FabricIndexMin)
	if len(sessions) != 2 {
		t.Fatalf("FindByFabric() returned %d sessions, want 2", len(sessions))
	}
}

func TestPeerConnections_MarkExpiredInvokesCallbackThenRemoves(t *testing.T) {
	table := NewPeerConnections(4)
	st, _, _ := table.Create(testConnectionConfig(1, 42, 5001))

	var notified *PeerConnectionState
	table.MarkExpired(st, func(p *PeerConnectionState) {
		notified = p
	})

	if notified != st {
		t.Fatalf("onExpire called with %v, want %v", notified, st)
	}
	if _, ok := table.FindBySessionID(1); ok {
		t.Fatal("session should be removed after MarkExpired")
	}
}

func TestPeerConnections_ExpireInactive(t *testing.T) {
	table := NewPeerConnections(4)
	table.Create(testConnectionConfig(1, 42, 5001))

	var expiredCount int
	table.ExpireInactive(time.Now().Add(time.Hour), time.Minute, func(p *PeerConnectionState) {
		expiredCount++
	})

	if expiredCount != 1 {
		t.Fatalf("ExpireInactive() expired %d sessions, want 1", expiredCount)
	}
	if table.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", table.Count())
	}
}

func TestPeerConnections_CreateNoMemoryOnZeroCapacity(t *testing.T) {
	table := NewPeerConnections(0) // defaults to DefaultMaxPeerConnections

	// Explicitly force a zero-capacity table to exercise the NoMemory path.
	table.capacity = 0

	_, _, err := table.Create(testConnectionConfig(1, 42, 5001))
	if err != ErrNoMemory {
		t.Fatalf("Create() on zero-capacity table error = %v, want ErrNoMemory", err)
	}
}
