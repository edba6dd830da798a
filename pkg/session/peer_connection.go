package session

import (
	"sync"
	"time"

	"github.com/backkem/matter/pkg/fabric"
	"github.com/backkem/matter/pkg/message"
	"github.com/backkem/matter/pkg/transport"
)

// Key size constants.
const (
	// SessionKeySize is the size of I2R and R2I keys (16 bytes for AES-128).
	SessionKeySize = 16

	// ResumptionIDSize is the size of the resumption ID (16 bytes).
	ResumptionIDSize = 16

	// MaxCATCount is the maximum number of CASE Authenticated Tags.
	MaxCATCount = 3
)

// PeerConnectionState holds state for an established authenticated session
// (produced by a PairingSession after PASE/CASE completion). It is the
// unit of state kept in the PeerConnections table.
type PeerConnectionState struct {
	sessionType    SessionType
	role           SessionRole
	localSessionID uint16
	peerSessionID  uint16

	i2rKey       []byte
	r2iKey       []byte
	sharedSecret []byte

	encryptCodec *message.Codec
	decryptCodec *message.Codec

	sendCounter    *LocalCounter
	controlCounter *LocalCounter // built per §10.2; nothing reads or advances it
	peerCounter    *PeerCounter

	fabricIndex fabric.FabricIndex
	peerNodeID  fabric.NodeID
	localNodeID fabric.NodeID

	peerAddress transport.PeerAddress // mutable; roams on secure dispatch

	resumptionID [ResumptionIDSize]byte

	lastActivityTime time.Time
	activeTimestamp  time.Time

	params Params

	caseAuthTags []uint32

	mu sync.RWMutex
}

// PeerConnectionConfig configures a new authenticated session after key
// derivation completes.
type PeerConnectionConfig struct {
	SessionType    SessionType
	Role           SessionRole
	LocalSessionID uint16
	PeerSessionID  uint16
	I2RKey         []byte
	R2IKey         []byte
	SharedSecret   []byte
	FabricIndex    fabric.FabricIndex
	PeerNodeID     fabric.NodeID
	LocalNodeID    fabric.NodeID
	PeerAddress    transport.PeerAddress
	PeerCounter    *PeerCounter // from PairingSession.PeerCounter(); nil creates a fresh trust-first counter
	Params         Params
	CaseAuthTags   []uint32
}

// NewPeerConnectionState creates a new authenticated session context.
func NewPeerConnectionState(config PeerConnectionConfig) (*PeerConnectionState, error) {
	if !config.SessionType.IsValid() {
		return nil, ErrInvalidSessionType
	}
	if !config.Role.IsValid() {
		return nil, ErrInvalidRole
	}
	if config.LocalSessionID == 0 {
		return nil, ErrInvalidSessionID
	}
	if len(config.I2RKey) != SessionKeySize {
		return nil, ErrInvalidKey
	}
	if len(config.R2IKey) != SessionKeySize {
		return nil, ErrInvalidKey
	}

	localNodeIDForNonce := uint64(config.LocalNodeID)
	peerNodeIDForNonce := uint64(config.PeerNodeID)
	if config.SessionType == SessionTypePASE {
		localNodeIDForNonce = 0
		peerNodeIDForNonce = 0
	}

	var encryptCodec, decryptCodec *message.Codec
	var err error

	if config.Role == SessionRoleInitiator {
		encryptCodec, err = message.NewCodec(config.I2RKey, localNodeIDForNonce)
		if err != nil {
			return nil, err
		}
		decryptCodec, err = message.NewCodec(config.R2IKey, peerNodeIDForNonce)
		if err != nil {
			return nil, err
		}
	} else {
		encryptCodec, err = message.NewCodec(config.R2IKey, localNodeIDForNonce)
		if err != nil {
			return nil, err
		}
		decryptCodec, err = message.NewCodec(config.I2RKey, peerNodeIDForNonce)
		if err != nil {
			return nil, err
		}
	}

	peerCounter := config.PeerCounter
	if peerCounter == nil {
		peerCounter = NewPeerCounter()
	}

	now := time.Now()

	ctx := &PeerConnectionState{
		sessionType:      config.SessionType,
		role:             config.Role,
		localSessionID:   config.LocalSessionID,
		peerSessionID:    config.PeerSessionID,
		i2rKey:           make([]byte, SessionKeySize),
		r2iKey:           make([]byte, SessionKeySize),
		encryptCodec:     encryptCodec,
		decryptCodec:     decryptCodec,
		sendCounter:      NewLocalCounter(),
		controlCounter:   NewLocalCounter(),
		peerCounter:      peerCounter,
		fabricIndex:      config.FabricIndex,
		peerNodeID:       config.PeerNodeID,
		localNodeID:      config.LocalNodeID,
		peerAddress:      config.PeerAddress,
		lastActivityTime: now,
		activeTimestamp:  now,
		params:           config.Params.WithDefaults(),
	}

	copy(ctx.i2rKey, config.I2RKey)
	copy(ctx.r2iKey, config.R2IKey)

	if len(config.SharedSecret) > 0 {
		ctx.sharedSecret = make([]byte, len(config.SharedSecret))
		copy(ctx.sharedSecret, config.SharedSecret)
	}

	if len(config.CaseAuthTags) > 0 {
		count := len(config.CaseAuthTags)
		if count > MaxCATCount {
			count = MaxCATCount
		}
		ctx.caseAuthTags = make([]uint32, count)
		copy(ctx.caseAuthTags, config.CaseAuthTags[:count])
	}

	return ctx, nil
}

// LocalSessionID returns the local session identifier.
func (s *PeerConnectionState) LocalSessionID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localSessionID
}

// PeerSessionID returns the peer's session identifier.
func (s *PeerConnectionState) PeerSessionID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerSessionID
}

// SessionType returns whether this is a PASE or CASE session.
func (s *PeerConnectionState) SessionType() SessionType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionType
}

// Role returns the session role (initiator or responder).
func (s *PeerConnectionState) Role() SessionRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// FabricIndex returns the fabric index for this session.
func (s *PeerConnectionState) FabricIndex() fabric.FabricIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fabricIndex
}

// SetFabricIndex sets the fabric index.
func (s *PeerConnectionState) SetFabricIndex(index fabric.FabricIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fabricIndex = index
}

// PeerNodeID returns the peer's node ID.
func (s *PeerConnectionState) PeerNodeID() fabric.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerNodeID
}

// LocalNodeID returns the local node ID.
func (s *PeerConnectionState) LocalNodeID() fabric.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localNodeID
}

// PeerAddress returns the peer address currently on file for this session.
func (s *PeerConnectionState) PeerAddress() transport.PeerAddress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerAddress
}

// SetPeerAddress records a new peer address, implementing transparent
// roaming: secure dispatch calls this when a correctly-authenticated
// datagram arrives from an address different from the one on file.
func (s *PeerConnectionState) SetPeerAddress(addr transport.PeerAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerAddress = addr
}

// Encrypt encrypts a message for transmission and advances the session's
// send counter. Sets header.SessionID and header.MessageCounter.
func (s *PeerConnectionState) Encrypt(header *message.MessageHeader, protocol *message.ProtocolHeader, payload []byte, privacy bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, err := s.sendCounter.Advance()
	if err != nil {
		return nil, err
	}

	header.SessionID = s.peerSessionID
	header.MessageCounter = counter

	encrypted, err := s.encryptCodec.Encode(header, protocol, payload, privacy)
	if err != nil {
		return nil, err
	}

	s.lastActivityTime = time.Now()

	return encrypted, nil
}

// Decrypt decrypts an incoming message. It performs cryptographic
// verification only — counter verification is the caller's (session
// manager's) responsibility, applied in the verify -> decrypt -> commit
// order the dispatch algorithm requires.
func (s *PeerConnectionState) Decrypt(data []byte) (*message.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peerNodeIDForNonce := uint64(s.peerNodeID)
	if s.sessionType == SessionTypePASE {
		peerNodeIDForNonce = 0
	}

	frame, err := s.decryptCodec.Decode(data, peerNodeIDForNonce)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return frame, nil
}

// VerifyCounter checks an inbound counter against the peer counter without
// committing it. See PeerCounter.Verify.
func (s *PeerConnectionState) VerifyCounter(counter uint32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerCounter.Verify(counter)
}

// CommitCounter accepts counter into the peer counter's replay window.
// Must be called only after the message has decrypted successfully.
func (s *PeerConnectionState) CommitCounter(counter uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerCounter.Commit(counter)
}

// SetPeerCounter forces the peer counter's baseline, used by the
// counter-sync service once synchronization completes.
func (s *PeerConnectionState) SetPeerCounter(counter uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerCounter.SetCounter(counter)
}

// PeerCounterSynchronized reports whether the peer counter is
// synchronized. The value seeded at pairing does not count; SetPeerCounter
// does.
func (s *PeerConnectionState) PeerCounterSynchronized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerCounter.Synchronized()
}

// NextCounter returns and advances the local send counter directly,
// bypassing Encrypt. Used by callers that need the raw counter value.
func (s *PeerConnectionState) NextCounter() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter.Advance()
}

// IsPeerActive returns whether the peer is in active mode, per the
// SESSION_ACTIVE_THRESHOLD parameter.
func (s *PeerConnectionState) IsPeerActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.activeTimestamp) < s.params.ActiveThreshold
}

// MarkActivity updates timestamps on message send/receive. Call with
// isReceive=true for incoming messages, false for outgoing.
func (s *PeerConnectionState) MarkActivity(isReceive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.lastActivityTime = now
	if isReceive {
		s.activeTimestamp = now
	}
}

// LastActivityTime returns the time of last send or receive.
func (s *PeerConnectionState) LastActivityTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivityTime
}

// GetParams returns the MRP parameters.
func (s *PeerConnectionState) GetParams() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams sets the MRP parameters.
func (s *PeerConnectionState) SetParams(params Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params.WithDefaults()
}

// SetResumptionID sets the resumption ID after CASE completion.
func (s *PeerConnectionState) SetResumptionID(id [ResumptionIDSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumptionID = id
}

// ResumptionID returns the resumption ID for session resumption.
func (s *PeerConnectionState) ResumptionID() [ResumptionIDSize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumptionID
}

// SharedSecret returns the shared secret for CASE resumption, or nil for
// PASE sessions.
func (s *PeerConnectionState) SharedSecret() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sharedSecret == nil {
		return nil
	}
	result := make([]byte, len(s.sharedSecret))
	copy(result, s.sharedSecret)
	return result
}

// CaseAuthTags returns the CASE Authenticated Tags, or nil if none.
func (s *PeerConnectionState) CaseAuthTags() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.caseAuthTags == nil {
		return nil
	}
	result := make([]uint32, len(s.caseAuthTags))
	copy(result, s.caseAuthTags)
	return result
}

// ZeroizeKeys securely clears the session keys from memory.
func (s *PeerConnectionState) ZeroizeKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.i2rKey {
		s.i2rKey[i] = 0
	}
	for i := range s.r2iKey {
		s.r2iKey[i] = 0
	}
	if s.sharedSecret != nil {
		for i := range s.sharedSecret {
			s.sharedSecret[i] = 0
		}
	}

	s.encryptCodec = nil
	s.decryptCodec = nil
}
