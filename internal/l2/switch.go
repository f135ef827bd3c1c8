package l2

import (
	"Go2NetSDN/internal/model"
	"net"
)

// LearningSwitch makes the classic learning-switch decision on top of a Table.
type LearningSwitch struct {
	table       *Table
	idleTimeout uint16
	keyIPv4     bool
}

// NewLearningSwitch creates a learning switch over table. Installed rules use
// idleTimeout (seconds, zero for permanent). With keyIPv4 set, rules for IPv4
// frames also match eth_type and ipv4_src, so their counters identify the
// sending host by address.
func NewLearningSwitch(table *Table, idleTimeout uint16, keyIPv4 bool) *LearningSwitch {
	return &LearningSwitch{table: table, idleTimeout: idleTimeout, keyIPv4: keyIPv4}
}

// Learn records the source of a frame.
func (s *LearningSwitch) Learn(pkt model.PacketIn, src net.HardwareAddr) {
	s.table.Learn(pkt.DPID, src, pkt.InPort)
}

// Decide forwards a frame whose source has already been learned. A known
// destination gets a priority-1 unicast rule on (in_port, eth_dst, eth_src)
// and a packet-out. An unknown destination is flooded without a rule.
// srcIP is the frame's IPv4 source, or nil for non-IPv4 frames.
func (s *LearningSwitch) Decide(pkt model.PacketIn, src, dst net.HardwareAddr, srcIP net.IP) model.Decision {
	port, ok := s.table.Resolve(pkt.DPID, dst)
	if !ok {
		return model.Decision{
			Out:    model.ReplayPacket(pkt, []model.Action{model.Output(model.PortFlood)}),
			Reason: "flood",
		}
	}

	match := model.Match{
		InPort: pkt.InPort,
		EthDst: dst,
		EthSrc: src,
	}
	if s.keyIPv4 && srcIP != nil {
		match.EthType = model.EtherTypeIPv4
		match.IPv4Src = srcIP
	}
	actions := []model.Action{model.Output(port)}
	return model.Decision{
		Rule: &model.Rule{
			Priority:    model.PriorityL2,
			Match:       match,
			Actions:     actions,
			IdleTimeout: s.idleTimeout,
		},
		Out:    model.ReplayPacket(pkt, actions),
		Reason: "unicast",
	}
}
