// Package testutil provides fakes and frame builders shared by package tests.
package testutil

import (
	"Go2NetSDN/internal/model"
	"errors"
	"sync"
)

// ErrDisconnected is returned by RecordingChannel for switches marked down.
var ErrDisconnected = errors.New("switch disconnected")

// InstalledRule is a recorded InstallRule call.
type InstalledRule struct {
	DPID model.DatapathID
	Rule model.Rule
}

// RemovedRule is a recorded RemoveRule call.
type RemovedRule struct {
	DPID     model.DatapathID
	Priority uint16
	Match    model.Match
}

// SentPacket is a recorded PacketOut call.
type SentPacket struct {
	DPID model.DatapathID
	Out  model.PacketOut
}

// RecordingChannel is a model.SwitchChannel that records every command.
type RecordingChannel struct {
	mu        sync.Mutex
	Installed []InstalledRule
	Removed   []RemovedRule
	Packets   []SentPacket
	Requests  []model.DatapathID
	down      map[model.DatapathID]bool
}

// NewRecordingChannel returns an empty recorder.
func NewRecordingChannel() *RecordingChannel {
	return &RecordingChannel{down: make(map[model.DatapathID]bool)}
}

// SetDown makes every subsequent command for dpid fail.
func (c *RecordingChannel) SetDown(dpid model.DatapathID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down[dpid] = true
}

func (c *RecordingChannel) InstallRule(dpid model.DatapathID, rule model.Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[dpid] {
		return ErrDisconnected
	}
	c.Installed = append(c.Installed, InstalledRule{DPID: dpid, Rule: rule})
	return nil
}

func (c *RecordingChannel) RemoveRule(dpid model.DatapathID, priority uint16, match model.Match) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[dpid] {
		return ErrDisconnected
	}
	c.Removed = append(c.Removed, RemovedRule{DPID: dpid, Priority: priority, Match: match})
	return nil
}

func (c *RecordingChannel) PacketOut(dpid model.DatapathID, out model.PacketOut) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[dpid] {
		return ErrDisconnected
	}
	c.Packets = append(c.Packets, SentPacket{DPID: dpid, Out: out})
	return nil
}

func (c *RecordingChannel) RequestFlowStats(dpid model.DatapathID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[dpid] {
		return ErrDisconnected
	}
	c.Requests = append(c.Requests, dpid)
	return nil
}

// RulesAt returns the recorded installs with the given priority.
func (c *RecordingChannel) RulesAt(priority uint16) []InstalledRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []InstalledRule
	for _, r := range c.Installed {
		if r.Rule.Priority == priority {
			out = append(out, r)
		}
	}
	return out
}

// PacketOuts returns a copy of the recorded packet-outs.
func (c *RecordingChannel) PacketOuts() []SentPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentPacket(nil), c.Packets...)
}

// StatsRequests returns a copy of the recorded stats requests.
func (c *RecordingChannel) StatsRequests() []model.DatapathID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DatapathID(nil), c.Requests...)
}

// Reset forgets everything recorded so far.
func (c *RecordingChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Installed = nil
	c.Removed = nil
	c.Packets = nil
	c.Requests = nil
}
