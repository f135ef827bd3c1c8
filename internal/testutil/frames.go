package testutil

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// MustMAC parses a MAC address or panics.
func MustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ARPRequest builds a broadcast who-has frame for target from sender.
func ARPRequest(senderMAC string, senderIP, targetIP string) []byte {
	src := MustMAC(senderMAC)
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   src,
		SourceProtAddress: net.ParseIP(senderIP).To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.ParseIP(targetIP).To4(),
	}
	return serialize(eth, arp)
}

// UDPFrame builds an Ethernet/IPv4/UDP frame with a small payload.
func UDPFrame(srcMAC, dstMAC, srcIP, dstIP string) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       MustMAC(srcMAC),
		DstMAC:       MustMAC(dstMAC),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcIP).To4(),
		DstIP:    net.ParseIP(dstIP).To4(),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 8080}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(eth, ip, udp, gopacket.Payload([]byte("hello")))
}

// LLDPFrame builds a frame with the LLDP ethertype and an opaque payload.
func LLDPFrame(srcMAC string) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       MustMAC(srcMAC),
		DstMAC:       net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e},
		EthernetType: layers.EthernetTypeLinkLayerDiscovery,
	}
	return serialize(eth, gopacket.Payload(make([]byte, 32)))
}
