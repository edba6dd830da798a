package session

import (
	"time"

	"github.com/backkem/matter/pkg/fabric"
	"github.com/backkem/matter/pkg/transport"
)

// Transport is the downward collaborator the manager sends datagrams
// through and asks to tear down connections on session expiry. A
// *transport.Manager satisfies this directly.
type Transport interface {
	Send(data []byte, peer transport.PeerAddress) error
	Disconnect(peer transport.PeerAddress) error
	SetMessageHandler(handler transport.MessageHandler)
}

// TimerHandle cancels a scheduled callback. Canceling a timer that has
// already fired, or canceling twice, is a no-op.
type TimerHandle interface {
	Cancel()
}

// SystemLayer is the downward collaborator used to schedule the periodic
// expiry sweep. It also exposes a monotonic clock, which the manager does
// not read: activity timestamps and the idle timeout use time.Now().
type SystemLayer interface {
	StartTimer(delay time.Duration, fn func()) TimerHandle
	MonotonicTimeMS() uint64
}

// CounterSyncService is the downward collaborator invoked when a secure
// dispatch sees a counter it cannot yet verify because the session's
// peer counter is not synchronized. The service is responsible for
// running the Matter counter-synchronization exchange out of band and
// then calling back into the manager (via RedispatchAfterSync and
// PeerConnectionState.SetPeerCounter) once it completes. data is the
// full raw datagram as received, retained so it can be redelivered once
// sync completes.
type CounterSyncService interface {
	QueueReceivedMessageAndStartSync(localSessionID uint16, peerAddr transport.PeerAddress, data []byte)
}

// PairingSession is the upward-facing adapter through which a completed
// PASE/CASE handshake hands its derived keys and counter state to
// NewPairing.
type PairingSession interface {
	SessionType() SessionType
	Role() SessionRole
	PeerSessionID() uint16
	I2RKey() []byte
	R2IKey() []byte
	SharedSecret() []byte
	PeerNodeID() fabric.NodeID
	LocalNodeID() fabric.NodeID
	FabricIndex() fabric.FabricIndex
	PeerCounter() uint32
	CaseAuthTags() []uint32
}
