package model

// SwitchChannel accepts commands for connected switches. Every call is
// fire-and-forget: a returned error means the command was not sent, and the
// caller must not retry it.
type SwitchChannel interface {
	InstallRule(dpid DatapathID, rule Rule) error
	RemoveRule(dpid DatapathID, priority uint16, match Match) error
	PacketOut(dpid DatapathID, out PacketOut) error
	RequestFlowStats(dpid DatapathID) error
}

// RuleInstaller is the subset of SwitchChannel that manipulates flow tables.
type RuleInstaller interface {
	InstallRule(dpid DatapathID, rule Rule) error
	RemoveRule(dpid DatapathID, priority uint16, match Match) error
}
