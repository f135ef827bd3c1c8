// Package l2 implements MAC learning and the unicast-versus-flood decision.
package l2

import (
	"Go2NetSDN/internal/model"
	"net"
	"sort"
)

// Entry is one learned host location.
type Entry struct {
	MAC  string       `json:"mac"`
	Port model.PortNo `json:"port"`
}

// Table maps (switch, hardware address) to the port the address was last seen on.
// Entries never expire. It is owned by the event loop and is not safe for
// concurrent use.
type Table struct {
	ports map[model.DatapathID]map[string]model.PortNo
}

// NewTable creates an empty forwarding table.
func NewTable() *Table {
	return &Table{ports: make(map[model.DatapathID]map[string]model.PortNo)}
}

// Learn records that mac was seen on port of dpid, overwriting any previous entry.
func (t *Table) Learn(dpid model.DatapathID, mac net.HardwareAddr, port model.PortNo) {
	sw, ok := t.ports[dpid]
	if !ok {
		sw = make(map[string]model.PortNo)
		t.ports[dpid] = sw
	}
	sw[mac.String()] = port
}

// Resolve returns the port mac was last learned on. ok is false when the
// address is unknown, meaning the caller should flood.
func (t *Table) Resolve(dpid model.DatapathID, mac net.HardwareAddr) (port model.PortNo, ok bool) {
	port, ok = t.ports[dpid][mac.String()]
	return port, ok
}

// Forget drops every entry learned on dpid.
func (t *Table) Forget(dpid model.DatapathID) {
	delete(t.ports, dpid)
}

// Entries returns the entries of dpid sorted by MAC.
func (t *Table) Entries(dpid model.DatapathID) []Entry {
	sw := t.ports[dpid]
	out := make([]Entry, 0, len(sw))
	for mac, port := range sw {
		out = append(out, Entry{MAC: mac, Port: port})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}

// Len returns the total number of entries across all switches.
func (t *Table) Len() int {
	n := 0
	for _, sw := range t.ports {
		n += len(sw)
	}
	return n
}
