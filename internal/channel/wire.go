package channel

import (
	"Go2NetSDN/internal/model"
	"fmt"
	"net"
	"time"
)

// Event types carried on the events subject.
const (
	TypeSwitchConnected    = "switch_connected"
	TypeSwitchDisconnected = "switch_disconnected"
	TypePacketIn           = "packet_in"
	TypeFlowStatsReply     = "flow_stats_reply"
)

// Command ops carried on the per-switch command subjects.
const (
	OpInstallRule = "install_rule"
	OpRemoveRule  = "remove_rule"
	OpPacketOut   = "packet_out"
	OpFlowStats   = "flow_stats"
)

// Match is the wire form of model.Match. Addresses are textual.
type Match struct {
	InPort  uint32 `json:"in_port,omitempty"`
	EthSrc  string `json:"eth_src,omitempty"`
	EthDst  string `json:"eth_dst,omitempty"`
	EthType uint16 `json:"eth_type,omitempty"`
	IPv4Src string `json:"ipv4_src,omitempty"`
	IPv4Dst string `json:"ipv4_dst,omitempty"`
}

// Action is the wire form of model.Action.
type Action struct {
	Type string `json:"type"`
	Port uint32 `json:"port,omitempty"`
	MAC  string `json:"mac,omitempty"`
	IP   string `json:"ip,omitempty"`
}

// Rule is the wire form of model.Rule.
type Rule struct {
	Priority    uint16   `json:"priority"`
	Match       Match    `json:"match"`
	Actions     []Action `json:"actions"`
	IdleTimeout uint16   `json:"idle_timeout,omitempty"`
	Cookie      uint64   `json:"cookie,omitempty"`
}

// PacketOut is the wire form of model.PacketOut.
type PacketOut struct {
	InPort   uint32   `json:"in_port"`
	BufferID uint32   `json:"buffer_id"`
	Actions  []Action `json:"actions"`
	Data     []byte   `json:"data,omitempty"`
}

// FlowStat is one entry of a flow stats reply.
type FlowStat struct {
	Priority    uint16 `json:"priority"`
	Match       Match  `json:"match"`
	PacketCount uint64 `json:"packet_count"`
	ByteCount   uint64 `json:"byte_count"`
	DurationSec uint32 `json:"duration_sec"`
	DurationNs  uint32 `json:"duration_nsec"`
}

// Event is a message published by a switch agent.
type Event struct {
	Type     string     `json:"type"`
	DPID     uint64     `json:"dpid"`
	Ports    []uint32   `json:"ports,omitempty"`
	InPort   uint32     `json:"in_port,omitempty"`
	// BufferID is optional; an absent id means the frame was not buffered.
	BufferID *uint32    `json:"buffer_id,omitempty"`
	Data     []byte     `json:"data,omitempty"`
	Flows    []FlowStat `json:"flows,omitempty"`
}

// Command is a message sent to a switch agent.
type Command struct {
	Op        string     `json:"op"`
	DPID      uint64     `json:"dpid"`
	Rule      *Rule      `json:"rule,omitempty"`
	Priority  uint16     `json:"priority,omitempty"`
	Match     *Match     `json:"match,omitempty"`
	PacketOut *PacketOut `json:"packet_out,omitempty"`
}

func encodeMatch(m model.Match) Match {
	w := Match{InPort: uint32(m.InPort), EthType: m.EthType}
	if len(m.EthSrc) > 0 {
		w.EthSrc = m.EthSrc.String()
	}
	if len(m.EthDst) > 0 {
		w.EthDst = m.EthDst.String()
	}
	if m.IPv4Src != nil {
		w.IPv4Src = m.IPv4Src.String()
	}
	if m.IPv4Dst != nil {
		w.IPv4Dst = m.IPv4Dst.String()
	}
	return w
}

func parseMAC(s string) (net.HardwareAddr, error) {
	if s == "" {
		return nil, nil
	}
	return net.ParseMAC(s)
}

func parseIPv4(s string) (net.IP, error) {
	if s == "" {
		return nil, nil
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid ipv4 address %q", s)
	}
	return ip, nil
}

func decodeMatch(w Match) (model.Match, error) {
	m := model.Match{InPort: model.PortNo(w.InPort), EthType: w.EthType}
	var err error
	if m.EthSrc, err = parseMAC(w.EthSrc); err != nil {
		return model.Match{}, fmt.Errorf("eth_src: %w", err)
	}
	if m.EthDst, err = parseMAC(w.EthDst); err != nil {
		return model.Match{}, fmt.Errorf("eth_dst: %w", err)
	}
	if m.IPv4Src, err = parseIPv4(w.IPv4Src); err != nil {
		return model.Match{}, fmt.Errorf("ipv4_src: %w", err)
	}
	if m.IPv4Dst, err = parseIPv4(w.IPv4Dst); err != nil {
		return model.Match{}, fmt.Errorf("ipv4_dst: %w", err)
	}
	return m, nil
}

func encodeActions(actions []model.Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		w := Action{Type: a.Type.String()}
		switch a.Type {
		case model.ActionOutput:
			w.Port = uint32(a.Port)
		case model.ActionSetEthSrc, model.ActionSetEthDst:
			w.MAC = a.MAC.String()
		case model.ActionSetIPv4Src, model.ActionSetIPv4Dst:
			w.IP = a.IP.String()
		}
		out = append(out, w)
	}
	return out
}

func encodeRule(r model.Rule) *Rule {
	return &Rule{
		Priority:    r.Priority,
		Match:       encodeMatch(r.Match),
		Actions:     encodeActions(r.Actions),
		IdleTimeout: r.IdleTimeout,
		Cookie:      r.Cookie,
	}
}

// Decode converts a wire event into a model event.
func Decode(w Event) (model.Event, error) {
	dpid := model.DatapathID(w.DPID)
	switch w.Type {
	case TypeSwitchConnected:
		ports := make([]model.PortNo, 0, len(w.Ports))
		for _, p := range w.Ports {
			ports = append(ports, model.PortNo(p))
		}
		return model.SwitchConnected{DPID: dpid, Ports: ports}, nil
	case TypeSwitchDisconnected:
		return model.SwitchDisconnected{DPID: dpid}, nil
	case TypePacketIn:
		bufferID := model.NoBuffer
		if w.BufferID != nil {
			bufferID = *w.BufferID
		}
		return model.PacketIn{DPID: dpid, InPort: model.PortNo(w.InPort), BufferID: bufferID, Data: w.Data}, nil
	case TypeFlowStatsReply:
		samples := make([]model.FlowCounterSample, 0, len(w.Flows))
		for i, f := range w.Flows {
			m, err := decodeMatch(f.Match)
			if err != nil {
				return nil, fmt.Errorf("flow %d: %w", i, err)
			}
			samples = append(samples, model.FlowCounterSample{
				DPID:        dpid,
				Priority:    f.Priority,
				Match:       m,
				PacketCount: f.PacketCount,
				ByteCount:   f.ByteCount,
				Duration:    time.Duration(f.DurationSec)*time.Second + time.Duration(f.DurationNs),
			})
		}
		return model.FlowStatsReply{DPID: dpid, Samples: samples}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", w.Type)
}

// Encode converts a model event into its wire form. It is used by tools that
// act as a switch agent.
func Encode(ev model.Event) Event {
	w := Event{DPID: uint64(ev.Datapath())}
	switch e := ev.(type) {
	case model.SwitchConnected:
		w.Type = TypeSwitchConnected
		for _, p := range e.Ports {
			w.Ports = append(w.Ports, uint32(p))
		}
	case model.SwitchDisconnected:
		w.Type = TypeSwitchDisconnected
	case model.PacketIn:
		w.Type = TypePacketIn
		w.InPort = uint32(e.InPort)
		bufferID := e.BufferID
		w.BufferID = &bufferID
		w.Data = e.Data
	case model.FlowStatsReply:
		w.Type = TypeFlowStatsReply
		for _, s := range e.Samples {
			w.Flows = append(w.Flows, FlowStat{
				Priority:    s.Priority,
				Match:       encodeMatch(s.Match),
				PacketCount: s.PacketCount,
				ByteCount:   s.ByteCount,
				DurationSec: uint32(s.Duration / time.Second),
				DurationNs:  uint32(s.Duration % time.Second),
			})
		}
	}
	return w
}
