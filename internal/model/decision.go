package model

// Decision is the outcome of the reactive path for one packet-in: an optional
// rule to install followed by an optional packet-out.
type Decision struct {
	Rule   *Rule
	Out    *PacketOut
	Reason string
}

// ReplayPacket builds the packet-out that forwards the triggering frame
// through actions, referencing the switch buffer when there is one.
func ReplayPacket(pkt PacketIn, actions []Action) *PacketOut {
	out := &PacketOut{
		InPort:   pkt.InPort,
		BufferID: pkt.BufferID,
		Actions:  actions,
	}
	if pkt.BufferID == NoBuffer {
		out.Data = pkt.Data
	}
	return out
}
