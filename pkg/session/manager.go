package session

import (
	"time"

	"github.com/backkem/matter/pkg/fabric"
	"github.com/backkem/matter/pkg/message"
	"github.com/backkem/matter/pkg/transport"
	"github.com/pion/logging"
)

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// MaxPeerConnections limits the number of concurrent authenticated
	// sessions. Default: DefaultMaxPeerConnections (16).
	MaxPeerConnections int

	// MaxUnauthenticatedSessions limits the number of concurrent
	// handshake-in-progress sessions. Default:
	// DefaultMaxUnauthenticatedSessions (4).
	MaxUnauthenticatedSessions int

	// PeerConnectionTimeout is how long an authenticated session may sit
	// idle before the expiry sweep evicts it (only when
	// SessionRekeyingEnabled is set). Default:
	// DefaultPeerConnectionTimeout.
	PeerConnectionTimeout time.Duration

	// PeerConnectionTimeoutCheckFreq is how often the expiry sweep runs.
	// Default: DefaultPeerConnectionTimeoutCheckFreq.
	PeerConnectionTimeoutCheckFreq time.Duration

	// ReplayWindowBits overrides the width of the sliding replay window
	// kept behind a peer counter's high-water mark. 0 selects
	// DefaultReplayWindowBits.
	ReplayWindowBits uint32

	// SessionRekeyingEnabled gates idle-session eviction in the periodic
	// expiry sweep. Left false (the default), the sweep evicts nothing and
	// an authenticated session lives until it is explicitly expired. The
	// per-session control counter is not used either way.
	SessionRekeyingEnabled bool

	// AllowTransportPeerAddrInPairing permits NewPairing to accept a
	// PeerAddress tagged with a UDP/TCP transport type. Matter's pairing
	// engine normally resolves those itself and hands NewPairing either
	// an untyped IP-valued address or a BLE address; set true only for a
	// test harness that bypasses the pairing engine's own resolution.
	AllowTransportPeerAddrInPairing bool

	// LoggerFactory creates the manager's logger. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

// WithDefaults returns a copy of config with zero-value fields replaced
// by their defaults.
func (c ManagerConfig) WithDefaults() ManagerConfig {
	if c.MaxPeerConnections <= 0 {
		c.MaxPeerConnections = DefaultMaxPeerConnections
	}
	if c.MaxUnauthenticatedSessions <= 0 {
		c.MaxUnauthenticatedSessions = DefaultMaxUnauthenticatedSessions
	}
	if c.PeerConnectionTimeout <= 0 {
		c.PeerConnectionTimeout = DefaultPeerConnectionTimeout
	}
	if c.PeerConnectionTimeoutCheckFreq <= 0 {
		c.PeerConnectionTimeoutCheckFreq = DefaultPeerConnectionTimeoutCheckFreq
	}
	if c.ReplayWindowBits == 0 {
		c.ReplayWindowBits = DefaultReplayWindowBits
	}
	return c
}

// DefaultManagerConfig returns a ManagerConfig with every field at its
// default value.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{}.WithDefaults()
}

// Timing defaults, per the Matter session parameters this manager
// carries forward from the handshake's negotiated Params.
const (
	DefaultPeerConnectionTimeout          = 24 * time.Hour
	DefaultPeerConnectionTimeoutCheckFreq = 10 * time.Minute
)

// Manager is the secure session manager: the single point through which
// application messages are prepared, sent, and dispatched, and through
// which authenticated sessions come into and go out of existence. It is
// not safe for concurrent use — all of its methods, and every Delegate
// callback it invokes, are expected to run on one cooperative dispatch
// goroutine, mirroring the single-threaded event-loop model it was
// adapted from.
type Manager struct {
	state ManagerState

	config ManagerConfig

	peers *PeerConnections
	unauth *UnauthenticatedTable

	globalCounter *message.GlobalCounter

	transport   Transport
	systemLayer SystemLayer
	counterSync CounterSyncService
	delegate    Delegate

	expiryTimer TimerHandle

	log logging.LeveledLogger
}

// NewManager creates a session manager in the NotReady state. Call Init
// before using it.
func NewManager(config ManagerConfig) *Manager {
	config = config.WithDefaults()

	m := &Manager{
		state:         ManagerNotReady,
		config:        config,
		peers:         NewPeerConnections(config.MaxPeerConnections),
		unauth:        NewUnauthenticatedTable(config.MaxUnauthenticatedSessions, config.ReplayWindowBits),
		globalCounter: message.NewGlobalCounter(),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("session-manager")
	}
	return m
}

// Init wires the manager's downward collaborators, registers it as the
// transport's upward message handler, and schedules the first expiry
// sweep. Returns ErrIncorrectState if called more than once without an
// intervening Shutdown.
func (m *Manager) Init(tr Transport, sys SystemLayer, counterSync CounterSyncService, delegate Delegate) error {
	if m.state != ManagerNotReady {
		return ErrIncorrectState
	}
	if tr == nil || sys == nil || delegate == nil {
		return ErrInvalidArgument
	}

	m.transport = tr
	m.systemLayer = sys
	m.counterSync = counterSync
	m.delegate = delegate

	m.transport.SetMessageHandler(m.onDatagram)
	m.scheduleExpirySweep()

	m.state = ManagerInitialized

	if m.log != nil {
		m.log.Infof("session manager initialized: max peer connections=%d, max unauthenticated=%d",
			m.config.MaxPeerConnections, m.config.MaxUnauthenticatedSessions)
	}

	return nil
}

// Shutdown cancels the expiry timer, zeroizes every authenticated
// session's keys, and returns the manager to NotReady. Idempotent.
func (m *Manager) Shutdown() {
	if m.state != ManagerInitialized {
		return
	}

	if m.expiryTimer != nil {
		m.expiryTimer.Cancel()
		m.expiryTimer = nil
	}

	m.peers.ForEach(func(p *PeerConnectionState) bool {
		p.ZeroizeKeys()
		return true
	})

	m.peers = NewPeerConnections(m.config.MaxPeerConnections)
	m.unauth = NewUnauthenticatedTable(m.config.MaxUnauthenticatedSessions, m.config.ReplayWindowBits)
	m.state = ManagerNotReady

	if m.log != nil {
		m.log.Info("session manager shut down")
	}
}

// scheduleExpirySweep arms the one-shot idle-session sweep timer, which
// reschedules itself on every firing for as long as the manager stays
// initialized.
func (m *Manager) scheduleExpirySweep() {
	m.expiryTimer = m.systemLayer.StartTimer(m.config.PeerConnectionTimeoutCheckFreq, m.runExpirySweep)
}

func (m *Manager) runExpirySweep() {
	if m.state != ManagerInitialized {
		return
	}

	// Idle-session eviction only runs once rekeying is enabled — with it
	// off (the default), a session survives until explicitly expired.
	if m.config.SessionRekeyingEnabled {
		m.peers.ExpireInactive(time.Now(), m.config.PeerConnectionTimeout, func(p *PeerConnectionState) {
			m.notifyExpired(p)
		})
	}

	m.scheduleExpirySweep()
}

func (m *Manager) notifyExpired(p *PeerConnectionState) {
	handle := authenticatedHandle(p.PeerNodeID(), p.LocalSessionID())
	_ = m.transport.Disconnect(p.PeerAddress())
	p.ZeroizeKeys()
	if m.delegate != nil {
		m.delegate.OnConnectionExpired(handle)
	}
}

// NewPairing installs a newly completed PASE/CASE handshake as an
// authenticated session. peerAddr is rejected with ErrInvalidArgument if
// it is tagged with a UDP/TCP transport type, unless
// AllowTransportPeerAddrInPairing is set — the pairing engine is
// expected to hand this an untyped IP-valued address or a BLE address,
// since it is responsible for its own transport resolution.
func (m *Manager) NewPairing(peerAddr transport.PeerAddress, fabricIndex fabric.FabricIndex, pairing PairingSession) (SessionHandle, error) {
	var zero SessionHandle
	if m.state != ManagerInitialized {
		return zero, ErrIncorrectState
	}
	if pairing == nil {
		return zero, ErrInvalidArgument
	}
	if !m.config.AllowTransportPeerAddrInPairing {
		switch peerAddr.TransportType {
		case transport.TransportTypeUDP, transport.TransportTypeTCP:
			return zero, ErrInvalidArgument
		}
	}

	localSessionID, err := m.peers.AllocateLocalSessionID()
	if err != nil {
		return zero, err
	}

	peerCounter := NewPeerCounterWithWindow(m.config.ReplayWindowBits)
	peerCounter.SeedCounter(pairing.PeerCounter())

	cfg := PeerConnectionConfig{
		SessionType:    pairing.SessionType(),
		Role:           pairing.Role(),
		LocalSessionID: localSessionID,
		PeerSessionID:  pairing.PeerSessionID(),
		I2RKey:         pairing.I2RKey(),
		R2IKey:         pairing.R2IKey(),
		SharedSecret:   pairing.SharedSecret(),
		FabricIndex:    fabricIndex,
		PeerNodeID:     pairing.PeerNodeID(),
		LocalNodeID:    pairing.LocalNodeID(),
		PeerAddress:    peerAddr,
		PeerCounter:    peerCounter,
		CaseAuthTags:   pairing.CaseAuthTags(),
	}

	created, evicted, err := m.peers.Create(cfg)
	if err != nil {
		return zero, err
	}

	if evicted != nil {
		m.notifyExpired(evicted)
	}

	handle := authenticatedHandle(created.PeerNodeID(), created.LocalSessionID())
	if m.log != nil {
		m.log.Debugf("new pairing: peer node=%v local session=%d fabric=%v",
			created.PeerNodeID(), created.LocalSessionID(), fabricIndex)
	}
	if m.delegate != nil {
		m.delegate.OnNewConnection(handle)
	}

	return handle, nil
}

// ExpirePairing tears down the named authenticated session, if it still
// exists. No-op (no error) if the handle no longer resolves.
func (m *Manager) ExpirePairing(handle SessionHandle) error {
	if m.state != ManagerInitialized {
		return ErrIncorrectState
	}
	if !handle.authenticated {
		return ErrInvalidArgument
	}

	st, ok := m.peers.FindByLocalKey(handle.peerNodeID, handle.localSessionID)
	if !ok {
		return nil
	}

	m.peers.MarkExpired(st, func(p *PeerConnectionState) {
		m.notifyExpired(p)
	})
	return nil
}

// ExpireAllPairings tears down every authenticated session to nodeID on
// fabricIndex. Per the table's bulk-revocation contract the scan
// restarts from the top after each removal.
func (m *Manager) ExpireAllPairings(nodeID fabric.NodeID, fabricIndex fabric.FabricIndex) error {
	if m.state != ManagerInitialized {
		return ErrIncorrectState
	}

	for {
		match, found := m.nextMatchForFabric(nodeID, fabricIndex)
		if !found {
			return nil
		}
		m.peers.MarkExpired(match, func(p *PeerConnectionState) {
			m.notifyExpired(p)
		})
	}
}

// nextMatchForFabric scans from the top of the table for the first
// session matching both nodeID and fabricIndex. Called fresh after every
// removal, since FindByNodeID's cursor is invalidated by table mutation.
func (m *Manager) nextMatchForFabric(nodeID fabric.NodeID, fabricIndex fabric.FabricIndex) (*PeerConnectionState, bool) {
	cursor := 0
	for {
		match, next, found := m.peers.FindByNodeID(nodeID, cursor)
		if !found {
			return nil, false
		}
		if match.FabricIndex() == fabricIndex {
			return match, true
		}
		cursor = next
	}
}

// ExpireAllPairingsForFabric tears down every authenticated session on
// fabricIndex, regardless of peer node ID. Used when a fabric is
// removed from the node.
func (m *Manager) ExpireAllPairingsForFabric(fabricIndex fabric.FabricIndex) error {
	if m.state != ManagerInitialized {
		return ErrIncorrectState
	}

	for {
		sessions := m.peers.FindByFabric(fabricIndex)
		if len(sessions) == 0 {
			return nil
		}
		m.peers.MarkExpired(sessions[0], func(p *PeerConnectionState) {
			m.notifyExpired(p)
		})
	}
}

// PrepareMessage builds a Matter datagram for handle: for an
// authenticated handle it encrypts, advancing the session's send
// counter; for an unauthenticated handle it is sent in the clear using
// the global unencrypted counter. privacy requests header obfuscation,
// meaningful only for authenticated sessions.
func (m *Manager) PrepareMessage(handle SessionHandle, protocol *message.ProtocolHeader, payload []byte, privacy bool) ([]byte, error) {
	if m.state != ManagerInitialized {
		return nil, ErrIncorrectState
	}

	if handle.authenticated {
		st, ok := m.peers.FindByLocalKey(handle.peerNodeID, handle.localSessionID)
		if !ok {
			return nil, ErrNotConnected
		}

		header := &message.MessageHeader{
			SessionType: message.SessionTypeUnicast,
			Control:     protocol.IsControlMessage(),
		}
		data, err := st.Encrypt(header, protocol, payload, privacy)
		if err != nil {
			return nil, err
		}
		st.MarkActivity(false)
		return data, nil
	}

	sess, ok := m.unauth.FindByPeerAddress(handle.peerAddress)
	if !ok {
		return nil, ErrNotConnected
	}

	counter, err := m.globalCounter.Next()
	if err != nil {
		return nil, ErrCounterExhausted
	}

	header := &message.MessageHeader{
		SessionType:    message.SessionTypeUnicast,
		SessionID:      0,
		MessageCounter: counter,
		Control:        protocol.IsControlMessage(),
	}
	codec := message.NewUnsecuredCodec()
	data := codec.Encode(header, protocol, payload)
	m.unauth.MarkActive(sess)
	return data, nil
}

// SendPrepared hands an already-built datagram to the transport for
// delivery to handle's current peer address.
func (m *Manager) SendPrepared(handle SessionHandle, data []byte) error {
	if m.state != ManagerInitialized {
		return ErrIncorrectState
	}
	if data == nil {
		return ErrInvalidArgument
	}

	var addr transport.PeerAddress
	if handle.authenticated {
		st, ok := m.peers.FindByLocalKey(handle.peerNodeID, handle.localSessionID)
		if !ok {
			return ErrNotConnected
		}
		addr = st.PeerAddress()
	} else {
		sess, ok := m.unauth.FindByPeerAddress(handle.peerAddress)
		if !ok {
			return ErrNotConnected
		}
		addr = sess.peerAddress
	}

	if err := m.transport.Send(data, addr); err != nil {
		if m.log != nil {
			m.log.Warnf("send to %v failed: %v", addr, err)
		}
		return err
	}
	return nil
}

// onDatagram is the transport's upward entry point, registered during
// Init. It dispatches to plaintext or secure handling based on the
// wire header, then delivers to the delegate or reports an error.
func (m *Manager) onDatagram(msg *transport.ReceivedMessage) {
	if m.state != ManagerInitialized {
		return
	}

	var header message.MessageHeader
	if _, err := header.Decode(msg.Data); err != nil {
		if m.delegate != nil {
			m.delegate.OnReceiveError(err, msg.PeerAddr)
		}
		return
	}

	if !header.IsSecure() {
		m.dispatchPlaintext(msg, &header)
		return
	}

	m.dispatchSecure(msg, &header)
}

// dispatchPlaintext handles an unencrypted datagram: find-or-allocate an
// UnauthenticatedSession keyed by peer address, verify-or-trust-first
// its counter, and deliver.
func (m *Manager) dispatchPlaintext(msg *transport.ReceivedMessage, header *message.MessageHeader) {
	sess := m.unauth.FindOrAllocate(msg.PeerAddr)

	if err := sess.peerCounter.VerifyOrTrustFirst(header.MessageCounter); err != nil {
		if m.delegate != nil {
			m.delegate.OnReceiveError(err, msg.PeerAddr)
		}
		return
	}

	frame, err := message.DecodeUnsecured(msg.Data)
	if err != nil {
		if m.delegate != nil {
			m.delegate.OnReceiveError(err, msg.PeerAddr)
		}
		return
	}

	sess.peerCounter.Commit(header.MessageCounter)
	m.unauth.MarkActive(sess)

	handle := unauthenticatedHandle(msg.PeerAddr)
	if m.delegate != nil {
		m.delegate.OnMessageReceived(handle, frame.Payload, DuplicateMessageNo)
	}
}

// dispatchSecure handles an encrypted datagram: resolve the session by
// wire session ID, defer to the counter-sync service if the peer
// counter isn't synchronized yet, otherwise verify -> decrypt -> commit
// in that order, apply transparent roaming, and deliver — including the
// duplicate-with-ack case where a message is redelivered despite being a
// counter duplicate because it requested an acknowledgement. A control
// message (header.Control) bypasses counter verification and the
// counter-sync defer entirely — control-message counter validation is a
// documented TODO, not a silent gap, and the sync handshake itself must
// be able to get its own messages through without waiting on sync.
func (m *Manager) dispatchSecure(msg *transport.ReceivedMessage, header *message.MessageHeader) {
	st, ok := m.peers.FindBySessionID(header.SessionID)
	if !ok {
		if m.delegate != nil {
			m.delegate.OnReceiveError(ErrKeyNotFoundFromPeer, msg.PeerAddr)
		}
		return
	}

	duplicate := DuplicateMessageNo

	if !header.Control {
		if !st.PeerCounterSynchronized() && m.counterSync != nil {
			m.counterSync.QueueReceivedMessageAndStartSync(st.LocalSessionID(), msg.PeerAddr, msg.Data)
			return
		}

		verifyErr := st.VerifyCounter(header.MessageCounter)
		if verifyErr != nil {
			if verifyErr != ErrDuplicateMessageReceived {
				if m.delegate != nil {
					m.delegate.OnReceiveError(verifyErr, msg.PeerAddr)
				}
				return
			}
			// Duplicate: only worth decrypting and redelivering if the
			// sender is waiting on an acknowledgement, since the exchange
			// layer's own reliability bookkeeping drives off of that
			// delivery.
			duplicate = DuplicateMessageYes
		}
	}

	frame, err := st.Decrypt(msg.Data)
	if err != nil {
		if m.delegate != nil {
			m.delegate.OnReceiveError(err, msg.PeerAddr)
		}
		return
	}

	if duplicate == DuplicateMessageYes && !frame.Protocol.NeedsAck() {
		return
	}

	if !header.Control && duplicate == DuplicateMessageNo {
		st.CommitCounter(header.MessageCounter)
	}

	if !st.PeerAddress().Equal(msg.PeerAddr) {
		st.SetPeerAddress(msg.PeerAddr)
	}
	m.peers.MarkActive(st)

	handle := authenticatedHandle(st.PeerNodeID(), st.LocalSessionID())
	if m.delegate != nil {
		m.delegate.OnMessageReceived(handle, frame.Payload, duplicate)
	}
}

// RedispatchAfterSync re-enters secure dispatch for a datagram that was
// previously deferred to the counter-sync service, once the service has
// called PeerConnectionState.SetPeerCounter to establish a baseline.
// This bypasses find-or-allocate entirely: the session named by
// localSessionID must already exist, since it is the same one the
// deferral was issued against.
func (m *Manager) RedispatchAfterSync(localSessionID uint16, peerAddr transport.PeerAddress, data []byte) {
	if m.state != ManagerInitialized {
		return
	}

	var header message.MessageHeader
	if _, err := header.Decode(data); err != nil {
		if m.delegate != nil {
			m.delegate.OnReceiveError(err, peerAddr)
		}
		return
	}

	msg := &transport.ReceivedMessage{Data: data, PeerAddr: peerAddr}
	m.dispatchSecure(msg, &header)
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() ManagerState {
	return m.state
}

// PeerConnectionCount returns the number of active authenticated
// sessions.
func (m *Manager) PeerConnectionCount() int {
	return m.peers.Count()
}
