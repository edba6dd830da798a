package transport

import (
	"fmt"
	"net"
)

// BLEConnHandle identifies a BLE connection. BLE has no IP-style address;
// the platform's Bluetooth stack hands back an opaque per-connection handle
// that is stable for the lifetime of the link.
type BLEConnHandle uint64

// PeerAddress identifies a remote peer. Exactly one of Addr or BLEHandle is
// meaningful, selected by TransportType. Two addresses are equal iff
// TransportType and the corresponding payload both match; use Equal rather
// than == since net.Addr is an interface.
type PeerAddress struct {
	// Addr is the network address of the peer (UDP/TCP only).
	Addr net.Addr
	// BLEHandle identifies the peer's BLE connection (BLE only).
	BLEHandle BLEConnHandle
	// TransportType identifies the transport protocol.
	TransportType TransportType
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	switch p.TransportType {
	case TransportTypeBLE:
		return fmt.Sprintf("BLE:%d", p.BLEHandle)
	case TransportTypeUDP, TransportTypeTCP:
		if p.Addr == nil {
			return fmt.Sprintf("%s:<nil>", p.TransportType)
		}
		return fmt.Sprintf("%s:%s", p.TransportType, p.Addr.String())
	default:
		return "Undefined"
	}
}

// IsValid returns true if the peer address has a valid transport type and a
// payload appropriate to it.
func (p PeerAddress) IsValid() bool {
	switch p.TransportType {
	case TransportTypeUDP, TransportTypeTCP:
		return p.Addr != nil
	case TransportTypeBLE:
		return true
	default:
		return false
	}
}

// Equal reports whether two peer addresses name the same peer. Field-by-field
// comparison is required because net.Addr is an interface: two distinct
// *net.UDPAddr values with identical IP/port/zone are != but Equal.
func (p PeerAddress) Equal(o PeerAddress) bool {
	if p.TransportType != o.TransportType {
		return false
	}
	switch p.TransportType {
	case TransportTypeUDP, TransportTypeTCP:
		if p.Addr == nil || o.Addr == nil {
			return p.Addr == o.Addr
		}
		return p.Addr.Network() == o.Addr.Network() && p.Addr.String() == o.Addr.String()
	case TransportTypeBLE:
		return p.BLEHandle == o.BLEHandle
	default:
		return true // two Undefined addresses are considered equal (both "no address")
	}
}

// NewUDPPeerAddress creates a PeerAddress for a UDP peer.
func NewUDPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{
		Addr:          addr,
		TransportType: TransportTypeUDP,
	}
}

// NewTCPPeerAddress creates a PeerAddress for a TCP peer.
func NewTCPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{
		Addr:          addr,
		TransportType: TransportTypeTCP,
	}
}

// NewBLEPeerAddress creates a PeerAddress for a BLE peer.
func NewBLEPeerAddress(handle BLEConnHandle) PeerAddress {
	return PeerAddress{
		BLEHandle:     handle,
		TransportType: TransportTypeBLE,
	}
}

// UDPAddrFromString parses an address string and creates a UDP PeerAddress.
func UDPAddrFromString(addr string) (PeerAddress, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewUDPPeerAddress(udpAddr), nil
}

// TCPAddrFromString parses an address string and creates a TCP PeerAddress.
func TCPAddrFromString(addr string) (PeerAddress, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewTCPPeerAddress(tcpAddr), nil
}
