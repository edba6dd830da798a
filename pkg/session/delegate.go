package session

import (
	"github.com/backkem/matter/pkg/fabric"
	"github.com/backkem/matter/pkg/transport"
)

// SessionHandle names a session stably across its lifetime without
// pinning a pointer to the underlying table entry, which may be
// replaced by eviction. Authenticated handles resolve by local session
// ID (guarded by peer node ID, see PeerConnections.FindByLocalKey);
// unauthenticated handles resolve by peer address.
type SessionHandle struct {
	authenticated  bool
	localSessionID uint16
	peerNodeID     fabric.NodeID
	peerAddress    transport.PeerAddress
}

// IsAuthenticated reports whether the handle names a PeerConnections
// entry (true) or an UnauthenticatedTable entry (false).
func (h SessionHandle) IsAuthenticated() bool {
	return h.authenticated
}

// LocalSessionID returns the local session ID for an authenticated
// handle. Meaningless for an unauthenticated handle.
func (h SessionHandle) LocalSessionID() uint16 {
	return h.localSessionID
}

// PeerAddress returns the peer address for an unauthenticated handle.
// Meaningless for an authenticated handle — resolve the session first
// and call PeerConnectionState.PeerAddress for the current roamed
// address.
func (h SessionHandle) PeerAddress() transport.PeerAddress {
	return h.peerAddress
}

func authenticatedHandle(peerNodeID fabric.NodeID, localSessionID uint16) SessionHandle {
	return SessionHandle{authenticated: true, peerNodeID: peerNodeID, localSessionID: localSessionID}
}

func unauthenticatedHandle(addr transport.PeerAddress) SessionHandle {
	return SessionHandle{authenticated: false, peerAddress: addr}
}

// Delegate receives upward notifications from the session manager. All
// methods are invoked synchronously on the dispatch goroutine — a
// delegate must not block, and any reentrant calls back into the
// manager happen on the same goroutine that is currently dispatching.
type Delegate interface {
	// OnMessageReceived is invoked once per inbound application message,
	// after successful decrypt (for authenticated sessions) or immediately
	// for plaintext dispatch (for unauthenticated sessions). duplicate is
	// DuplicateMessageYes only for a counter duplicate that was delivered
	// anyway because the sender requested an acknowledgement.
	OnMessageReceived(handle SessionHandle, payload []byte, duplicate DuplicateMessage)

	// OnNewConnection is invoked whenever NewPairing installs an
	// authenticated session into the PeerConnections table. A roaming
	// update only changes the session's peer address and does not invoke
	// it.
	OnNewConnection(handle SessionHandle)

	// OnConnectionExpired is invoked whenever an authenticated session
	// leaves the table: explicit ExpirePairing, the idle-timeout sweep,
	// LRU eviction on Create, or replacement by a new pairing at the same
	// local session ID.
	OnConnectionExpired(handle SessionHandle)

	// OnReceiveError is invoked for a datagram that could not be
	// delivered: decryption failure, replay/out-of-window rejection,
	// or malformed framing. peerAddr is the address the datagram arrived
	// from, which may not correspond to any known session.
	OnReceiveError(err error, peerAddr transport.PeerAddress)
}
