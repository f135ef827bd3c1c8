package channel

import (
	"Go2NetSDN/internal/model"
	"errors"

	log "github.com/sirupsen/logrus"
)

// RuleChannel is a rule installer that may own only some switches.
type RuleChannel interface {
	model.RuleInstaller
	Manages(dpid model.DatapathID) bool
}

// Composite sends rule operations for managed switches to rules and
// everything else to base. Rules the rule channel cannot express fall back
// to base.
type Composite struct {
	base  model.SwitchChannel
	rules RuleChannel
}

// NewComposite combines base with a rule channel.
func NewComposite(base model.SwitchChannel, rules RuleChannel) *Composite {
	return &Composite{base: base, rules: rules}
}

func (c *Composite) InstallRule(dpid model.DatapathID, rule model.Rule) error {
	if !c.rules.Manages(dpid) {
		return c.base.InstallRule(dpid, rule)
	}
	err := c.rules.InstallRule(dpid, rule)
	if errors.Is(err, ErrUnsupported) {
		log.WithField("dpid", dpid).WithError(err).Debug("Falling back to the switch channel")
		return c.base.InstallRule(dpid, rule)
	}
	return err
}

func (c *Composite) RemoveRule(dpid model.DatapathID, priority uint16, match model.Match) error {
	if !c.rules.Manages(dpid) {
		return c.base.RemoveRule(dpid, priority, match)
	}
	return c.rules.RemoveRule(dpid, priority, match)
}

func (c *Composite) PacketOut(dpid model.DatapathID, out model.PacketOut) error {
	return c.base.PacketOut(dpid, out)
}

func (c *Composite) RequestFlowStats(dpid model.DatapathID) error {
	return c.base.RequestFlowStats(dpid)
}
