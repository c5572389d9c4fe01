package capture

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"time"

	"netlens/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Translate turns one raw frame into an event. It never fails: frames that
// cannot be decoded still yield an event with N/A addresses, an UNKNOWN
// transport and the raw lengths in the summary.
func Translate(data []byte, ci gopacket.CaptureInfo, decoder gopacket.Decoder) (ev models.NetworkEvent) {
	ev = models.NetworkEvent{
		Timestamp:     ci.Timestamp,
		SourceAddress: models.NotAvailable,
		DestAddress:   models.NotAvailable,
		Transport:     models.TransportUnknown,
		Length:        ci.Length,
		CaptureLength: ci.CaptureLength,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.CaptureLength == 0 {
		ev.CaptureLength = len(data)
	}
	if ev.Length == 0 {
		ev.Length = ev.CaptureLength
	}

	defer func() {
		if r := recover(); r != nil {
			ev = undecodable(ev)
		}
	}()

	if len(data) == 0 || decoder == nil {
		return undecodable(ev)
	}

	packet := gopacket.NewPacket(data, decoder, gopacket.Default)

	if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		eth, _ := ethLayer.(*layers.Ethernet)
		ev.Broadcast = bytes.Equal(eth.DstMAC, layers.EthernetBroadcast)
	}

	networkDecoded := false
	var ip4 layers.IPv4
	var ip6 layers.IPv6
	if decodedAt(packet, data, layers.LayerTypeIPv4, &ip4) {
		ev.SourceAddress = ip4.SrcIP.String()
		ev.DestAddress = ip4.DstIP.String()
		ev.Transport = ipv4Transport(ip4.Protocol)
		networkDecoded = true
	} else if decodedAt(packet, data, layers.LayerTypeIPv6, &ip6) {
		ev.SourceAddress = ip6.SrcIP.String()
		ev.DestAddress = ip6.DstIP.String()
		ev.Transport = ipv6Transport(ip6.NextHeader)
		networkDecoded = true
	}

	portsDecoded := false
	var tcp layers.TCP
	var udp layers.UDP
	if decodedAt(packet, data, layers.LayerTypeTCP, &tcp) {
		ev.SrcPort = uint16(tcp.SrcPort)
		ev.DstPort = uint16(tcp.DstPort)
		if !networkDecoded {
			ev.Transport = models.TransportTCP
		}
		portsDecoded = true
	} else if decodedAt(packet, data, layers.LayerTypeUDP, &udp) {
		ev.SrcPort = uint16(udp.SrcPort)
		ev.DstPort = uint16(udp.DstPort)
		if !networkDecoded {
			ev.Transport = models.TransportUDP
		}
		portsDecoded = true
	}

	switch {
	case networkDecoded && portsDecoded:
		ev.Summary = fmt.Sprintf("%s %s -> %s, len=%d", ev.Transport,
			net.JoinHostPort(ev.SourceAddress, strconv.Itoa(int(ev.SrcPort))),
			net.JoinHostPort(ev.DestAddress, strconv.Itoa(int(ev.DstPort))),
			ev.Length)
	case networkDecoded:
		ev.Summary = fmt.Sprintf("%s %s -> %s, len=%d", ev.Transport, ev.SourceAddress, ev.DestAddress, ev.Length)
	case portsDecoded:
		ev.Summary = fmt.Sprintf("%s port %d -> %d, len=%d", ev.Transport, ev.SrcPort, ev.DstPort, ev.Length)
	default:
		return undecodable(ev)
	}
	return ev
}

// decodedAt decodes the header of the first layer of type t again, on its
// own, and reports whether it is complete. gopacket keeps a layer in the
// packet even when decoding it failed part way, so presence alone proves
// nothing. Successfully decoded layers before it are contiguous, which gives
// its offset in data.
func decodedAt(packet gopacket.Packet, data []byte, t gopacket.LayerType, into gopacket.DecodingLayer) bool {
	offset := 0
	for _, l := range packet.Layers() {
		if l.LayerType() == t {
			if offset >= len(data) {
				return false
			}
			return into.DecodeFromBytes(data[offset:], gopacket.NilDecodeFeedback) == nil
		}
		offset += len(l.LayerContents())
	}
	return false
}

func undecodable(ev models.NetworkEvent) models.NetworkEvent {
	ev.SourceAddress = models.NotAvailable
	ev.DestAddress = models.NotAvailable
	ev.Transport = models.TransportUnknown
	ev.SrcPort, ev.DstPort = 0, 0
	ev.Summary = fmt.Sprintf("Packet received: len=%d, caplen=%d", ev.Length, ev.CaptureLength)
	return ev
}

func ipv4Transport(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return models.TransportTCP
	case layers.IPProtocolUDP:
		return models.TransportUDP
	case layers.IPProtocolICMPv4:
		return models.TransportICMP
	}
	return fallbackTransport(p)
}

func ipv6Transport(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return models.TransportTCP
	case layers.IPProtocolUDP:
		return models.TransportUDP
	case layers.IPProtocolICMPv6:
		return models.TransportICMPv6
	}
	return fallbackTransport(p)
}

func fallbackTransport(p layers.IPProtocol) string {
	return "proto-" + strconv.Itoa(int(p))
}
