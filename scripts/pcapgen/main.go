package main

import (
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Generates a capture for sdn-replay: a client resolving and reaching the
// virtual service, background traffic between hosts, then a small-packet
// UDP flood from one attacker.
func main() {
	outputFile := pflag.StringP("output", "o", "scenario.pcap", "Output pcap file path")
	normalCount := pflag.IntP("count", "c", 200, "Number of background packets")
	floodCount := pflag.Int("flood", 2000, "Number of flood packets from the attacker")
	vip := pflag.String("vip", "10.0.0.100", "Virtual service address")
	vmac := pflag.String("vmac", "00:00:00:00:00:fe", "Virtual service MAC")
	attacker := pflag.String("attacker", "00:00:00:00:00:66", "Attacker source MAC")
	pflag.Parse()

	vipIP := net.ParseIP(*vip).To4()
	if vipIP == nil {
		log.Fatalf("Invalid --vip %q", *vip)
	}
	vipMAC, err := net.ParseMAC(*vmac)
	if err != nil {
		log.Fatalf("Invalid --vmac: %v", err)
	}
	attackerMAC, err := net.ParseMAC(*attacker)
	if err != nil {
		log.Fatalf("Invalid --attacker: %v", err)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	ts := time.Now()
	write := func(gap time.Duration, ls ...gopacket.SerializableLayer) {
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
		if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}
		ts = ts.Add(gap)
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	client := host(0x0a)
	// 1. The client resolves the virtual service, then sends one request.
	write(0,
		&layers.Ethernet{SrcMAC: client.mac, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   client.mac,
			SourceProtAddress: client.ip,
			DstHwAddress:      make(net.HardwareAddr, 6),
			DstProtAddress:    vipIP,
		},
	)
	write(time.Millisecond, udp(client.mac, vipMAC, client.ip, vipIP, 512)...)

	// 2. Background traffic between hosts with ordinary packet sizes.
	log.Infof("Generating %d background packets...", *normalCount)
	for i := 0; i < *normalCount; i++ {
		src, dst := host(0x10+byte(rand.Intn(4))), host(0x20+byte(rand.Intn(4)))
		write(20*time.Millisecond, udp(src.mac, dst.mac, src.ip, dst.ip, rand.Intn(1000)+400)...)
	}

	// 3. The flood: minimum-size frames from one source at a high rate.
	log.Infof("Generating %d flood packets from %s...", *floodCount, attackerMAC)
	attackerIP := net.IP{10, 0, 0, 66}
	for i := 0; i < *floodCount; i++ {
		dst := net.IP{10, 0, byte(rand.Intn(256)), byte(rand.Intn(256))}
		write(time.Millisecond, udp(attackerMAC, layers.EthernetBroadcast, attackerIP, dst, 18)...)
	}

	log.Infof("Successfully generated %d packets into %s.", *normalCount+*floodCount+2, *outputFile)
}

type endpoint struct {
	mac net.HardwareAddr
	ip  net.IP
}

func host(n byte) endpoint {
	return endpoint{
		mac: net.HardwareAddr{0, 0, 0, 0, 0, n},
		ip:  net.IP{10, 0, 0, n},
	}
}

func udp(srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, payloadSize int) []gopacket.SerializableLayer {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
	u := &layers.UDP{SrcPort: layers.UDPPort(rand.Intn(65535-1024) + 1024), DstPort: 80}
	u.SetNetworkLayerForChecksum(ip)
	payload := make([]byte, payloadSize)
	rand.Read(payload)
	return []gopacket.SerializableLayer{
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, u, gopacket.Payload(payload),
	}
}
