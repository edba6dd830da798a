package session

import "errors"

// Session package errors.
var (
	// ErrInvalidSessionType is returned when the session type is not PASE or CASE.
	ErrInvalidSessionType = errors.New("session: invalid session type")

	// ErrInvalidRole is returned when the session role is not Initiator or Responder.
	ErrInvalidRole = errors.New("session: invalid session role")

	// ErrInvalidKey is returned when an encryption key has invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrInvalidSessionID is returned when a session ID is invalid (0 for secure sessions).
	ErrInvalidSessionID = errors.New("session: invalid session ID")

	// ErrSessionNotFound is returned when a session lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be allocated.
	ErrSessionTableFull = errors.New("session: session table full")

	// ErrSessionIDExhausted is returned when no more session IDs are available.
	ErrSessionIDExhausted = errors.New("session: session ID space exhausted")

	// ErrDuplicateSession is returned when adding a session with an existing ID.
	ErrDuplicateSession = errors.New("session: duplicate session ID")

	// ErrCounterExhausted is returned when the message counter has wrapped.
	// The session must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: message counter exhausted")

	// ErrReplayDetected is returned when an incoming message counter indicates replay.
	ErrReplayDetected = errors.New("session: replay detected")

	// ErrDecryptionFailed is returned when message decryption fails.
	ErrDecryptionFailed = errors.New("session: decryption failed")

	// ErrGroupPeerTableFull is returned when no more group peers can be tracked.
	ErrGroupPeerTableFull = errors.New("session: group peer table full")

	// ErrInvalidNodeID is returned when a node ID is invalid (0 for unsecured sessions).
	ErrInvalidNodeID = errors.New("session: invalid node ID")

	// ErrIncorrectState is returned when a manager operation is attempted
	// in the wrong lifecycle state (e.g. Init twice, or any operation other
	// than Init/Shutdown before Init has run).
	ErrIncorrectState = errors.New("session: incorrect manager state")

	// ErrInvalidArgument is returned for null/invalid inputs, including a
	// peer address whose transport type is rejected by NewPairing.
	ErrInvalidArgument = errors.New("session: invalid argument")

	// ErrNoMemory is returned when the authenticated session table is full
	// and eviction was not possible (should not occur; eviction always
	// frees a slot except on an empty table with zero capacity).
	ErrNoMemory = errors.New("session: no memory for new session")

	// ErrNotConnected is returned when prepare_message/send_prepared is
	// given a handle that does not resolve to a live session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrKeyNotFoundFromPeer is returned when an encrypted datagram's
	// session ID does not match any authenticated session.
	ErrKeyNotFoundFromPeer = errors.New("session: key not found from peer")

	// ErrDuplicateMessageReceived is returned by PeerCounter.Verify when the
	// counter has already been committed.
	ErrDuplicateMessageReceived = errors.New("session: duplicate message received")

	// ErrMessageCounterOutOfWindow is returned by PeerCounter.Verify when
	// the counter is too far behind max_seen to be represented in the
	// replay window.
	ErrMessageCounterOutOfWindow = errors.New("session: message counter out of window")

	// ErrInvalidMessageLength is the error kind for a chained
	// (scatter/gather) send buffer. SendPrepared takes a flat []byte,
	// which cannot be chained, so no path in this package returns it.
	ErrInvalidMessageLength = errors.New("session: invalid message length")
)
