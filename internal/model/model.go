package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DatapathID is the opaque numeric identity of a switch.
type DatapathID uint64

func (d DatapathID) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// ParseDatapathID accepts a 0x-prefixed hex id, the 16 digit hex form
// printed by String, or a decimal id.
func ParseDatapathID(s string) (DatapathID, error) {
	base, digits := 10, s
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		base, digits = 16, s[2:]
	case len(s) == 16:
		base = 16
	}
	id, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid datapath id %q: %w", s, err)
	}
	return DatapathID(id), nil
}

// PortNo is a switch port number.
type PortNo uint32

// Reserved port numbers, as defined by OpenFlow 1.3.
const (
	PortAny        PortNo = 0
	PortFlood      PortNo = 0xfffffffb
	PortController PortNo = 0xfffffffd
)

// NoBuffer marks a packet-in whose frame was not buffered at the switch.
const NoBuffer uint32 = 0xffffffff

// Rule priorities used by the controller. Higher wins at the switch.
const (
	PriorityTableMiss uint16 = 0
	PriorityL2        uint16 = 1
	PriorityNAT       uint16 = 10
	PriorityDrop      uint16 = 100
	PriorityMax       uint16 = 0xffff
)

// EtherTypes the controller matches on.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeLLDP uint16 = 0x88cc
)

// Match is a flow match predicate. Zero-valued fields are wildcards.
type Match struct {
	InPort  PortNo           `json:"in_port,omitempty"`
	EthSrc  net.HardwareAddr `json:"eth_src,omitempty"`
	EthDst  net.HardwareAddr `json:"eth_dst,omitempty"`
	EthType uint16           `json:"eth_type,omitempty"`
	IPv4Src net.IP           `json:"ipv4_src,omitempty"`
	IPv4Dst net.IP           `json:"ipv4_dst,omitempty"`
}

// Key returns the canonical string form of the match. Two matches with the
// same key select the same packets.
func (m Match) Key() string {
	var parts []string
	if m.InPort != PortAny {
		parts = append(parts, fmt.Sprintf("in_port=%d", m.InPort))
	}
	if m.EthType != 0 {
		parts = append(parts, fmt.Sprintf("eth_type=0x%04x", m.EthType))
	}
	if len(m.EthSrc) > 0 {
		parts = append(parts, "eth_src="+m.EthSrc.String())
	}
	if len(m.EthDst) > 0 {
		parts = append(parts, "eth_dst="+m.EthDst.String())
	}
	if m.IPv4Src != nil {
		parts = append(parts, "ipv4_src="+m.IPv4Src.String())
	}
	if m.IPv4Dst != nil {
		parts = append(parts, "ipv4_dst="+m.IPv4Dst.String())
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ",")
}

// ActionType enumerates the actions a rule or packet-out may carry.
type ActionType int

const (
	ActionOutput ActionType = iota
	ActionSetEthSrc
	ActionSetEthDst
	ActionSetIPv4Src
	ActionSetIPv4Dst
)

func (t ActionType) String() string {
	switch t {
	case ActionOutput:
		return "output"
	case ActionSetEthSrc:
		return "set_eth_src"
	case ActionSetEthDst:
		return "set_eth_dst"
	case ActionSetIPv4Src:
		return "set_ipv4_src"
	case ActionSetIPv4Dst:
		return "set_ipv4_dst"
	default:
		return "unknown"
	}
}

// Action is a single rewrite or output step. Only the field matching Type is set.
type Action struct {
	Type ActionType       `json:"type"`
	Port PortNo           `json:"port,omitempty"`
	MAC  net.HardwareAddr `json:"mac,omitempty"`
	IP   net.IP           `json:"ip,omitempty"`
}

func Output(port PortNo) Action            { return Action{Type: ActionOutput, Port: port} }
func SetEthSrc(mac net.HardwareAddr) Action { return Action{Type: ActionSetEthSrc, MAC: mac} }
func SetEthDst(mac net.HardwareAddr) Action { return Action{Type: ActionSetEthDst, MAC: mac} }
func SetIPv4Src(ip net.IP) Action           { return Action{Type: ActionSetIPv4Src, IP: ip} }
func SetIPv4Dst(ip net.IP) Action           { return Action{Type: ActionSetIPv4Dst, IP: ip} }

// Rule is a flow entry to install on a switch. A rule with no actions drops.
type Rule struct {
	Priority    uint16   `json:"priority"`
	Match       Match    `json:"match"`
	Actions     []Action `json:"actions"`
	IdleTimeout uint16   `json:"idle_timeout,omitempty"`
	Cookie      uint64   `json:"cookie,omitempty"`
}

// IsDrop reports whether the rule discards matching packets.
func (r Rule) IsDrop() bool {
	return len(r.Actions) == 0
}

// PacketOut asks a switch to emit a frame through the given actions.
type PacketOut struct {
	InPort   PortNo   `json:"in_port"`
	BufferID uint32   `json:"buffer_id"`
	Actions  []Action `json:"actions"`
	Data     []byte   `json:"data,omitempty"`
}

// FlowCounterSample is one entry of a flow-stats reply.
type FlowCounterSample struct {
	DPID        DatapathID    `json:"dpid"`
	Priority    uint16        `json:"priority"`
	Match       Match         `json:"match"`
	PacketCount uint64        `json:"packet_count"`
	ByteCount   uint64        `json:"byte_count"`
	Duration    time.Duration `json:"duration"`
}

// FeatureVector is derived from a counter sample and fed to the classifier.
type FeatureVector struct {
	PacketRate     float64 `json:"packet_rate"`
	ByteRate       float64 `json:"byte_rate"`
	MeanPacketSize float64 `json:"mean_packet_size"`
	PacketCount    uint64  `json:"packet_count"`
	ByteCount      uint64  `json:"byte_count"`

	// Counter growth since the previous observation of the same flow.
	DeltaPackets uint64 `json:"delta_packets"`
	DeltaBytes   uint64 `json:"delta_bytes"`
}

// FeatureNames lists the classifier inputs in the order returned by Values.
var FeatureNames = []string{"packet_rate", "byte_rate", "mean_packet_size", "packet_count", "byte_count"}

// Values returns the classifier inputs in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{f.PacketRate, f.ByteRate, f.MeanPacketSize, float64(f.PacketCount), float64(f.ByteCount)}
}

// Verdict is the binary classifier output.
type Verdict int

const (
	VerdictNormal Verdict = iota
	VerdictAttack
)

func (v Verdict) String() string {
	if v == VerdictAttack {
		return "attack"
	}
	return "normal"
}

// ParseVerdict maps "normal"/"attack" (or "0"/"1") to a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0":
		return VerdictNormal, nil
	case "attack", "1":
		return VerdictAttack, nil
	}
	return VerdictNormal, fmt.Errorf("unknown verdict %q", s)
}

// IdentityKind selects which address identifies an offending source.
type IdentityKind string

const (
	IdentityMAC  IdentityKind = "mac"
	IdentityIPv4 IdentityKind = "ipv4"
)

// Identity is the source that a drop rule is keyed on.
type Identity struct {
	Kind  IdentityKind `json:"kind"`
	Value string       `json:"value"`
}

func (i Identity) String() string {
	return string(i.Kind) + ":" + i.Value
}

// ParseIdentity validates and normalizes an identity value.
func ParseIdentity(kind IdentityKind, value string) (Identity, error) {
	switch kind {
	case IdentityMAC:
		mac, err := net.ParseMAC(value)
		if err != nil {
			return Identity{}, fmt.Errorf("invalid mac identity %q: %w", value, err)
		}
		return Identity{Kind: IdentityMAC, Value: mac.String()}, nil
	case IdentityIPv4:
		ip := net.ParseIP(value).To4()
		if ip == nil {
			return Identity{}, fmt.Errorf("invalid ipv4 identity %q", value)
		}
		return Identity{Kind: IdentityIPv4, Value: ip.String()}, nil
	}
	return Identity{}, fmt.Errorf("unknown identity kind %q", kind)
}

// Match returns the match predicate that selects traffic from this identity.
func (i Identity) Match() Match {
	switch i.Kind {
	case IdentityMAC:
		mac, _ := net.ParseMAC(i.Value)
		return Match{EthSrc: mac}
	case IdentityIPv4:
		return Match{EthType: EtherTypeIPv4, IPv4Src: net.ParseIP(i.Value).To4()}
	}
	return Match{}
}

// SwitchState is the connection state of a switch.
type SwitchState int

const (
	StateConnecting SwitchState = iota
	StateActive
	StateDisconnected
)

func (s SwitchState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Switch is a registered datapath.
type Switch struct {
	ID          DatapathID  `json:"dpid"`
	Ports       []PortNo    `json:"ports"`
	State       SwitchState `json:"-"`
	ConnectedAt time.Time   `json:"connected_at"`
}
