package transport

// TransportType identifies the transport protocol used for a message.
type TransportType int

const (
	// TransportTypeUndefined is the zero value: no concrete link has been
	// assigned yet, e.g. a peer address carried by a pairing before any
	// traffic has been exchanged.
	TransportTypeUndefined TransportType = iota
	// TransportTypeUDP indicates UDP transport.
	TransportTypeUDP
	// TransportTypeTCP indicates TCP transport.
	TransportTypeTCP
	// TransportTypeBLE indicates a Bluetooth Low Energy connection,
	// addressed by connection handle rather than network address.
	TransportTypeBLE
)

// String returns the string representation of the transport type.
func (t TransportType) String() string {
	switch t {
	case TransportTypeUDP:
		return "UDP"
	case TransportTypeTCP:
		return "TCP"
	case TransportTypeBLE:
		return "BLE"
	default:
		return "Undefined"
	}
}

// IsValid returns true if the transport type is a known, addressable type.
// TransportTypeUndefined is a valid zero value but never addressable.
func (t TransportType) IsValid() bool {
	switch t {
	case TransportTypeUDP, TransportTypeTCP, TransportTypeBLE:
		return true
	default:
		return false
	}
}
