package manager

import (
	"Go2NetSDN/internal/metrics"
	"Go2NetSDN/internal/model"

	log "github.com/sirupsen/logrus"
)

// meteredChannel logs and counts failed switch commands. Commands are never
// retried.
type meteredChannel struct {
	inner   model.SwitchChannel
	metrics *metrics.Metrics
}

func ruleClass(priority uint16) string {
	switch priority {
	case model.PriorityTableMiss:
		return "table_miss"
	case model.PriorityL2:
		return "l2"
	case model.PriorityNAT:
		return "nat"
	case model.PriorityDrop:
		return "drop"
	}
	return "other"
}

func (c *meteredChannel) failed(op string, dpid model.DatapathID, err error) {
	c.metrics.ChannelError(op)
	log.WithFields(log.Fields{"dpid": dpid, "op": op}).WithError(err).Debug("Switch command dropped")
}

func (c *meteredChannel) InstallRule(dpid model.DatapathID, rule model.Rule) error {
	if err := c.inner.InstallRule(dpid, rule); err != nil {
		c.failed("install", dpid, err)
		return err
	}
	c.metrics.RuleInstalled(ruleClass(rule.Priority))
	return nil
}

func (c *meteredChannel) RemoveRule(dpid model.DatapathID, priority uint16, match model.Match) error {
	if err := c.inner.RemoveRule(dpid, priority, match); err != nil {
		c.failed("remove", dpid, err)
		return err
	}
	return nil
}

func (c *meteredChannel) PacketOut(dpid model.DatapathID, out model.PacketOut) error {
	if err := c.inner.PacketOut(dpid, out); err != nil {
		c.failed("packet_out", dpid, err)
		return err
	}
	return nil
}

func (c *meteredChannel) RequestFlowStats(dpid model.DatapathID) error {
	if err := c.inner.RequestFlowStats(dpid); err != nil {
		c.failed("stats", dpid, err)
		return err
	}
	return nil
}
