// Package vip publishes a virtual service address and load balances it over
// a pool of backends by rewriting addresses in both directions.
package vip

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/engine/protocol"
	"Go2NetSDN/internal/l2"
	"Go2NetSDN/internal/model"
	"fmt"
	"net"
)

// Backend is one real host behind the virtual service.
type Backend struct {
	IP   net.IP
	MAC  net.HardwareAddr
	Port model.PortNo
}

// Translator rewrites traffic to and from the virtual service. Backends are
// assumed reachable; there is no health checking.
type Translator struct {
	vip         net.IP
	vmac        net.HardwareAddr
	backends    []Backend
	next        int
	idleTimeout uint16
	keyClients  bool
}

// New builds a Translator from the load balancer configuration. With
// keyClients set, client to service rules also match the client's ipv4_src,
// giving every client its own rule and counters.
func New(cfg config.LoadBalancerConfig, idleTimeout uint16, keyClients bool) (*Translator, error) {
	if cfg.VirtualIP == "" || cfg.VirtualMAC == "" {
		return nil, config.ErrNoVirtualService
	}
	if len(cfg.Backends) == 0 {
		return nil, config.ErrNoBackends
	}
	vip := net.ParseIP(cfg.VirtualIP).To4()
	if vip == nil {
		return nil, fmt.Errorf("invalid virtual ip %q", cfg.VirtualIP)
	}
	vmac, err := net.ParseMAC(cfg.VirtualMAC)
	if err != nil {
		return nil, fmt.Errorf("invalid virtual mac %q: %w", cfg.VirtualMAC, err)
	}

	t := &Translator{vip: vip, vmac: vmac, idleTimeout: idleTimeout, keyClients: keyClients}
	for i, b := range cfg.Backends {
		ip := net.ParseIP(b.IP).To4()
		if ip == nil {
			return nil, fmt.Errorf("backend %d: invalid ip %q", i, b.IP)
		}
		mac, err := net.ParseMAC(b.MAC)
		if err != nil {
			return nil, fmt.Errorf("backend %d: invalid mac %q: %w", i, b.MAC, err)
		}
		t.backends = append(t.backends, Backend{IP: ip, MAC: mac, Port: model.PortNo(b.Port)})
	}
	return t, nil
}

// VirtualIP returns the published service address.
func (t *Translator) VirtualIP() net.IP { return t.vip }

// IsBackend reports whether ip belongs to the backend pool.
func (t *Translator) IsBackend(ip net.IP) bool {
	for _, b := range t.backends {
		if b.IP.Equal(ip) {
			return true
		}
	}
	return false
}

// VirtualMAC returns the published service hardware address.
func (t *Translator) VirtualMAC() net.HardwareAddr { return t.vmac }

// Backends returns the ordered backend pool.
func (t *Translator) Backends() []Backend { return t.backends }

// Next returns the next backend in strict rotation. Selections cycle through
// the pool regardless of which client or switch asked.
func (t *Translator) Next() Backend {
	b := t.backends[t.next]
	t.next = (t.next + 1) % len(t.backends)
	return b
}

// Translate handles frames that involve the virtual service. It returns false
// when the frame is unrelated and should take the plain L2 path. The frame's
// source must already have been learned into table.
func (t *Translator) Translate(pkt model.PacketIn, frame *protocol.Frame, table *l2.Table) (model.Decision, bool, error) {
	if frame.ARP != nil {
		if frame.ARP.IsRequest() && frame.ARP.TargetIP.Equal(t.vip) {
			d, err := t.answerARP(pkt, frame.ARP)
			return d, true, err
		}
		return model.Decision{}, false, nil
	}

	if frame.IPv4 == nil {
		return model.Decision{}, false, nil
	}
	switch {
	case frame.IPv4.Dst.Equal(t.vip):
		return t.toBackend(pkt, frame), true, nil
	case t.IsBackend(frame.IPv4.Src):
		return t.fromBackend(pkt, frame, table), true, nil
	}
	return model.Decision{}, false, nil
}

// answerARP synthesizes the reply for the virtual address and sends it back
// out of the port the request came in on. No rule is installed.
func (t *Translator) answerARP(pkt model.PacketIn, req *protocol.ARPInfo) (model.Decision, error) {
	data, err := protocol.BuildARPReply(t.vmac, t.vip, req)
	if err != nil {
		return model.Decision{}, err
	}
	return model.Decision{
		Out: &model.PacketOut{
			InPort:   model.PortController,
			BufferID: model.NoBuffer,
			Actions:  []model.Action{model.Output(pkt.InPort)},
			Data:     data,
		},
		Reason: "arp_reply",
	}, nil
}

func (t *Translator) toBackend(pkt model.PacketIn, frame *protocol.Frame) model.Decision {
	b := t.Next()
	actions := []model.Action{
		model.SetEthDst(b.MAC),
		model.SetIPv4Dst(b.IP),
		model.Output(b.Port),
	}
	match := model.Match{
		InPort:  pkt.InPort,
		EthType: model.EtherTypeIPv4,
		IPv4Dst: t.vip,
	}
	if t.keyClients {
		match.IPv4Src = frame.IPv4.Src
	}
	return model.Decision{
		Rule: &model.Rule{
			Priority:    model.PriorityNAT,
			Match:       match,
			Actions:     actions,
			IdleTimeout: t.idleTimeout,
		},
		Out:    model.ReplayPacket(pkt, actions),
		Reason: "to_backend",
	}
}

// fromBackend undoes the rewrite on return traffic. When the client's port
// is unknown the reply is flooded and no rule is installed.
func (t *Translator) fromBackend(pkt model.PacketIn, frame *protocol.Frame, table *l2.Table) model.Decision {
	port, ok := table.Resolve(pkt.DPID, frame.EthDst)
	if !ok {
		port = model.PortFlood
	}
	actions := []model.Action{
		model.SetEthSrc(t.vmac),
		model.SetIPv4Src(t.vip),
		model.Output(port),
	}
	d := model.Decision{
		Out:    model.ReplayPacket(pkt, actions),
		Reason: "from_backend",
	}
	if ok {
		d.Rule = &model.Rule{
			Priority: model.PriorityNAT,
			Match: model.Match{
				InPort:  pkt.InPort,
				EthType: frame.EtherType,
				IPv4Src: frame.IPv4.Src,
				IPv4Dst: frame.IPv4.Dst,
			},
			Actions:     actions,
			IdleTimeout: t.idleTimeout,
		}
	} else {
		d.Reason = "from_backend_flood"
	}
	return d
}
