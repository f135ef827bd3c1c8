package manager

import (
	"Go2NetSDN/internal/engine/features"
	"Go2NetSDN/internal/engine/protocol"
	"Go2NetSDN/internal/model"
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

func tableMissRule() model.Rule {
	return model.Rule{
		Priority: model.PriorityTableMiss,
		Actions:  []model.Action{model.Output(model.PortController)},
	}
}

func (m *Manager) handleConnected(e model.SwitchConnected) {
	sw, fresh := m.registry.OnConnect(e.DPID, e.Ports)
	fields := log.Fields{"dpid": e.DPID, "ports": len(sw.Ports)}
	if fresh {
		log.WithFields(fields).Info("Switch connected")
	} else {
		log.WithFields(fields).Info("Switch reconnected")
	}

	// Not yet active: the monitor and mitigation skip it until its base
	// rules are in place.
	m.channel.InstallRule(e.DPID, tableMissRule())
	if m.mitigation != nil {
		m.mitigation.OnSwitchConnected(e.DPID)
	}
	m.registry.Activate(e.DPID)
	m.metrics.SetSwitches(m.registry.Len())
}

func (m *Manager) handleDisconnected(e model.SwitchDisconnected) {
	if _, ok := m.registry.OnDisconnect(e.DPID); !ok {
		log.WithField("dpid", e.DPID).Debug("Disconnect for unknown switch")
		return
	}
	m.table.Forget(e.DPID)
	if m.extractor != nil {
		m.extractor.Forget(e.DPID)
	}
	m.metrics.SetSwitches(m.registry.Len())
	log.WithField("dpid", e.DPID).Info("Switch disconnected")
}

func (m *Manager) handlePacketIn(e model.PacketIn) {
	if _, ok := m.registry.Get(e.DPID); !ok {
		log.WithField("dpid", e.DPID).Debug("Packet-in from unregistered switch")
		m.metrics.PacketIn("unregistered")
		return
	}

	frame, err := protocol.ParseFrame(e.Data)
	if err != nil {
		log.WithFields(log.Fields{"dpid": e.DPID, "in_port": e.InPort}).WithError(err).Debug("Ignoring undecodable frame")
		m.metrics.PacketIn("undecodable")
		return
	}
	if frame.IsDiscovery() {
		m.metrics.PacketIn("discovery")
		return
	}

	m.learning.Learn(e, frame.EthSrc)

	var decision model.Decision
	handled := false
	if m.vip != nil {
		decision, handled, err = m.vip.Translate(e, frame, m.table)
		if err != nil {
			log.WithField("dpid", e.DPID).WithError(err).Warn("Virtual service translation failed")
			m.metrics.PacketIn("error")
			return
		}
	}
	if !handled {
		var srcIP net.IP
		if frame.IPv4 != nil {
			srcIP = frame.IPv4.Src
		}
		decision = m.learning.Decide(e, frame.EthSrc, frame.EthDst, srcIP)
	}
	m.apply(e.DPID, decision)
}

// apply sends the decision's rule, then its packet-out.
func (m *Manager) apply(dpid model.DatapathID, d model.Decision) {
	m.metrics.PacketIn(d.Reason)
	if d.Rule != nil {
		m.channel.InstallRule(dpid, *d.Rule)
	}
	if d.Out != nil {
		m.channel.PacketOut(dpid, *d.Out)
	}
}

func (m *Manager) handleStatsReply(e model.FlowStatsReply) {
	if m.mitigation == nil {
		return
	}
	for _, sample := range e.Samples {
		if sample.DPID == 0 {
			sample.DPID = e.DPID
		}
		m.processSample(sample)
	}
}

func (m *Manager) processSample(s model.FlowCounterSample) {
	fv, outcome := m.extractor.Extract(s)
	m.metrics.Sample(outcome.String())
	if outcome != features.Emitted {
		return
	}

	ctx := context.Background()
	if m.classifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.classifyTimeout)
		defer cancel()
	}
	verdict, _ := m.classifier.Classify(ctx, fv)
	m.metrics.Verdict(verdict.String())

	id, hasIdentity := m.mitigation.IdentityFor(s)
	if m.recorder != nil {
		rec := model.SampleRecord{
			Timestamp: time.Now(),
			DPID:      s.DPID,
			Priority:  s.Priority,
			MatchKey:  s.Match.Key(),
			Duration:  s.Duration,
			Features:  fv,
			Verdict:   verdict,
		}
		if hasIdentity {
			rec.Identity = id.String()
		}
		m.recorder.Record(rec)
	}

	if verdict != model.VerdictAttack {
		return
	}
	if !hasIdentity {
		log.WithFields(log.Fields{"dpid": s.DPID, "match": s.Match.Key()}).Debug("Attack verdict on a flow without a source identity")
		return
	}
	m.mitigation.OnAttack(id)
}
