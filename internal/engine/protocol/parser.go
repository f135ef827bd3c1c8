package protocol

import (
	"Go2NetSDN/internal/model"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotEthernet is returned for frames that do not decode as Ethernet.
var ErrNotEthernet = errors.New("not an ethernet frame")

// ARPInfo is the decoded ARP payload of a frame.
type ARPInfo struct {
	Operation uint16
	SenderMAC net.HardwareAddr
	SenderIP  net.IP
	TargetMAC net.HardwareAddr
	TargetIP  net.IP
}

// IsRequest reports whether the ARP packet is a request.
func (a *ARPInfo) IsRequest() bool {
	return a.Operation == layers.ARPRequest
}

// IPv4Info is the decoded IPv4 header of a frame.
type IPv4Info struct {
	Src      net.IP
	Dst      net.IP
	Protocol uint8
}

// Frame holds the fields of a packet-in frame the controller decides on.
type Frame struct {
	EthSrc    net.HardwareAddr
	EthDst    net.HardwareAddr
	EtherType uint16
	ARP       *ARPInfo
	IPv4      *IPv4Info
	Length    int
}

// IsDiscovery reports whether the frame is control-plane topology discovery
// traffic that must never reach forwarding logic.
func (f *Frame) IsDiscovery() bool {
	return f.EtherType == model.EtherTypeLLDP
}

// ParseFrame uses gopacket to decode a raw frame and extract the L2/L3 fields.
func ParseFrame(data []byte) (*Frame, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	l := packet.Layer(layers.LayerTypeEthernet)
	if l == nil {
		if errLayer := packet.ErrorLayer(); errLayer != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotEthernet, errLayer.Error())
		}
		return nil, ErrNotEthernet
	}
	eth := l.(*layers.Ethernet)

	frame := &Frame{
		EthSrc:    eth.SrcMAC,
		EthDst:    eth.DstMAC,
		EtherType: uint16(eth.EthernetType),
		Length:    len(data),
	}

	if l := packet.Layer(layers.LayerTypeARP); l != nil {
		arp := l.(*layers.ARP)
		frame.ARP = &ARPInfo{
			Operation: arp.Operation,
			SenderMAC: net.HardwareAddr(arp.SourceHwAddress),
			SenderIP:  net.IP(arp.SourceProtAddress).To4(),
			TargetMAC: net.HardwareAddr(arp.DstHwAddress),
			TargetIP:  net.IP(arp.DstProtAddress).To4(),
		}
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		frame.IPv4 = &IPv4Info{
			Src:      ip.SrcIP.To4(),
			Dst:      ip.DstIP.To4(),
			Protocol: uint8(ip.Protocol),
		}
	}

	return frame, nil
}

// BuildARPReply serializes an ARP reply announcing ip at mac, addressed to
// the sender of req.
func BuildARPReply(mac net.HardwareAddr, ip net.IP, req *ARPInfo) ([]byte, error) {
	if req == nil {
		return nil, errors.New("no ARP request to answer")
	}
	eth := &layers.Ethernet{
		SrcMAC:       mac,
		DstMAC:       req.SenderMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   mac,
		SourceProtAddress: ip.To4(),
		DstHwAddress:      req.SenderMAC,
		DstProtAddress:    req.SenderIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return nil, fmt.Errorf("failed to serialize ARP reply: %w", err)
	}
	return buf.Bytes(), nil
}
