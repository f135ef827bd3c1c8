// Package monitor polls switches for flow counters on a fixed interval.
package monitor

import (
	"Go2NetSDN/internal/model"
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// SwitchSource yields the switches that should be polled.
type SwitchSource interface {
	ForEachActive(fn func(model.Switch))
}

// StatsRequester is the subset of the switch channel used by the monitor.
type StatsRequester interface {
	RequestFlowStats(dpid model.DatapathID) error
}

// Monitor issues one flow-stats request per active switch per tick. Replies
// arrive on the event path; an unanswered request is superseded by the next tick.
type Monitor struct {
	switches  SwitchSource
	requester StatsRequester
	interval  time.Duration

	// OnPoll, if set, is called after every poll with the number of requests sent.
	OnPoll func(requested int)
}

// New creates a monitor. interval must be positive.
func New(switches SwitchSource, requester StatsRequester, interval time.Duration) *Monitor {
	return &Monitor{
		switches:  switches,
		requester: requester,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	log.Infof("Stats monitor started, polling every %v", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.PollOnce()
		case <-ctx.Done():
			log.Info("Stats monitor stopped")
			return
		}
	}
}

// PollOnce sends a flow-stats request to every active switch and returns how
// many requests were accepted by the channel.
func (m *Monitor) PollOnce() int {
	sent := 0
	m.switches.ForEachActive(func(sw model.Switch) {
		if err := m.requester.RequestFlowStats(sw.ID); err != nil {
			log.WithField("dpid", sw.ID).WithError(err).Debug("flow stats request dropped")
			return
		}
		sent++
	})
	if m.OnPoll != nil {
		m.OnPoll(sent)
	}
	return sent
}
