package models

import "time"

const (
	// NotAvailable stands in for an address the translator could not decode.
	NotAvailable = "N/A"

	TransportTCP     = "TCP"
	TransportUDP     = "UDP"
	TransportICMP    = "ICMP"
	TransportICMPv6  = "ICMPv6"
	TransportUnknown = "UNKNOWN"
)

// NetworkEvent is the record derived from one captured frame.
// It is passed by value and never modified after translation.
type NetworkEvent struct {
	Timestamp     time.Time
	SourceAddress string
	DestAddress   string
	Transport     string
	Summary       string

	// Ports are zero when no TCP/UDP header was decoded.
	SrcPort uint16
	DstPort uint16

	Length        int // wire length
	CaptureLength int

	// Broadcast is set when the link-layer destination is the broadcast address.
	Broadcast bool
}

// HasPorts reports whether a transport header with ports was decoded.
func (e NetworkEvent) HasPorts() bool {
	return e.SrcPort != 0 || e.DstPort != 0
}
