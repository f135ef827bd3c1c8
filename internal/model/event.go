package model

// EventKind enumerates the switch-originated events the controller reacts to.
type EventKind int

const (
	KindSwitchConnected EventKind = iota
	KindSwitchDisconnected
	KindPacketIn
	KindFlowStatsReply
)

func (k EventKind) String() string {
	switch k {
	case KindSwitchConnected:
		return "switch_connected"
	case KindSwitchDisconnected:
		return "switch_disconnected"
	case KindPacketIn:
		return "packet_in"
	case KindFlowStatsReply:
		return "flow_stats_reply"
	default:
		return "unknown"
	}
}

// Event is one of SwitchConnected, SwitchDisconnected, PacketIn or
// FlowStatsReply. The set is closed: the marker method is unexported.
type Event interface {
	Kind() EventKind
	Datapath() DatapathID
	isEvent()
}

// SwitchConnected is delivered once the switch handshake completes.
type SwitchConnected struct {
	DPID  DatapathID
	Ports []PortNo
}

// SwitchDisconnected is delivered when the channel to a switch is lost.
type SwitchDisconnected struct {
	DPID DatapathID
}

// PacketIn carries a frame punted to the controller.
type PacketIn struct {
	DPID     DatapathID
	InPort   PortNo
	BufferID uint32
	Data     []byte
}

// FlowStatsReply carries the per-flow counters of one switch.
type FlowStatsReply struct {
	DPID    DatapathID
	Samples []FlowCounterSample
}

func (SwitchConnected) Kind() EventKind    { return KindSwitchConnected }
func (SwitchDisconnected) Kind() EventKind { return KindSwitchDisconnected }
func (PacketIn) Kind() EventKind           { return KindPacketIn }
func (FlowStatsReply) Kind() EventKind     { return KindFlowStatsReply }

func (e SwitchConnected) Datapath() DatapathID    { return e.DPID }
func (e SwitchDisconnected) Datapath() DatapathID { return e.DPID }
func (e PacketIn) Datapath() DatapathID           { return e.DPID }
func (e FlowStatsReply) Datapath() DatapathID     { return e.DPID }

func (SwitchConnected) isEvent()    {}
func (SwitchDisconnected) isEvent() {}
func (PacketIn) isEvent()           {}
func (FlowStatsReply) isEvent()     {}
