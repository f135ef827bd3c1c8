// Package manager runs the controller's single event loop and owns every
// piece of mutable control-plane state.
package manager

import (
	"Go2NetSDN/internal/classifier"
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/engine/features"
	"Go2NetSDN/internal/engine/mitigation"
	"Go2NetSDN/internal/engine/monitor"
	"Go2NetSDN/internal/l2"
	"Go2NetSDN/internal/metrics"
	"Go2NetSDN/internal/model"
	"Go2NetSDN/internal/switchreg"
	"Go2NetSDN/internal/vip"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrStopped is returned by Submit and Do before Start and after Stop.
var ErrStopped = errors.New("manager stopped")

// Recorder receives every classified sample. Record must not block.
type Recorder interface {
	Record(rec model.SampleRecord)
	Start()
	Stop()
}

// BlockListener is told about every new block.
type BlockListener interface {
	NotifyBlock(id model.Identity, switches int)
	Start()
	Stop()
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMetrics records loop activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithRecorder forwards classified samples to r.
func WithRecorder(r Recorder) Option {
	return func(mgr *Manager) { mgr.recorder = r }
}

// WithBlockListener reports new blocks to l.
func WithBlockListener(l BlockListener) Option {
	return func(mgr *Manager) { mgr.listener = l }
}

// item is one unit of loop work: a switch event or an admin call.
type item struct {
	event model.Event
	fn    func()
	done  chan struct{}
}

// Manager serializes every switch event and admin request through one
// goroutine. The stats monitor is the only other goroutine touching shared
// state, and it only reads the registry.
type Manager struct {
	channel  *meteredChannel
	registry *switchreg.Registry
	table    *l2.Table
	learning *l2.LearningSwitch
	vip      *vip.Translator

	extractor  *features.Extractor
	classifier *classifier.FailOpen
	mitigation *mitigation.Engine
	monitor    *monitor.Monitor

	metrics  *metrics.Metrics
	recorder Recorder
	listener BlockListener

	classifyTimeout time.Duration

	queue chan item

	mu      sync.RWMutex
	started bool
	closed  bool

	cancelMonitor context.CancelFunc
	loopWg        sync.WaitGroup
	monitorWg     sync.WaitGroup
}

// NewManager builds the controller core. clf is required when mitigation is
// enabled. Load balancer configuration errors are returned unwrapped so that
// callers can match config.ErrNoVirtualService and config.ErrNoBackends.
func NewManager(cfg *config.Config, channel model.SwitchChannel, clf model.Classifier, opts ...Option) (*Manager, error) {
	interval, err := time.ParseDuration(cfg.Controller.StatsInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid controller stats_interval: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("controller stats_interval must be a positive duration")
	}

	m := &Manager{
		registry: switchreg.New(),
		table:    l2.NewTable(),
		queue:    make(chan item, cfg.Controller.EventBuffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.channel = &meteredChannel{inner: channel, metrics: m.metrics}
	// Blocking by address needs every forwarding rule to carry ipv4_src, so
	// that its counters name the sending host.
	keyIPv4 := cfg.Mitigation.Enabled && cfg.Mitigation.Mode == "l3"
	m.learning = l2.NewLearningSwitch(m.table, cfg.Controller.IdleTimeout, keyIPv4)

	if cfg.LoadBalancer.Enabled {
		m.vip, err = vip.New(cfg.LoadBalancer, cfg.Controller.IdleTimeout, keyIPv4)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"vip":      m.vip.VirtualIP(),
			"backends": len(m.vip.Backends()),
		}).Info("Load balancer enabled")
	}

	if cfg.Mitigation.Enabled {
		if clf == nil {
			return nil, fmt.Errorf("mitigation enabled but no classifier is configured")
		}
		m.classifyTimeout, err = time.ParseDuration(cfg.Classifier.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier timeout: %w", err)
		}
		m.mitigation, err = mitigation.New(cfg.Mitigation.Mode, m.registry, m.channel)
		if err != nil {
			return nil, err
		}
		m.mitigation.OnBlock = m.onBlock
		if m.vip != nil {
			m.mitigation.Exempt(serviceIdentities(m.vip)...)
		}
		m.extractor = features.New(cfg.Mitigation.MinPacketRate, cfg.Mitigation.SkipDropRules)
		m.classifier = classifier.NewFailOpen(clf, m.metrics.FailureCounter())
		log.WithField("mode", cfg.Mitigation.Mode).Info("Anomaly mitigation enabled")
	}

	m.monitor = monitor.New(m.registry, m.channel, interval)
	m.monitor.OnPoll = m.metrics.Poll
	return m, nil
}

// Start launches the event loop and the stats monitor, plus the recorder and
// block listener if configured.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true

	if m.recorder != nil {
		m.recorder.Start()
	}
	if m.listener != nil {
		m.listener.Start()
	}

	m.loopWg.Add(1)
	go m.run()

	// The monitor only feeds the mitigation pipeline.
	if m.mitigation != nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancelMonitor = cancel
		m.monitorWg.Add(1)
		go func() {
			defer m.monitorWg.Done()
			m.monitor.Run(ctx)
		}()
	}
	log.Info("Manager started")
}

// Submit enqueues a switch event. It blocks while the queue is full and is
// safe for concurrent callers. Events are refused until Start.
func (m *Manager) Submit(ev model.Event) error {
	if ev == nil {
		return fmt.Errorf("nil event")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed || !m.started {
		return ErrStopped
	}
	m.queue <- item{event: ev}
	return nil
}

// Do runs fn on the event loop, after every event submitted before it, and
// waits for it to return. It must not be called from inside the loop.
func (m *Manager) Do(fn func()) error {
	it := item{fn: fn, done: make(chan struct{})}

	m.mu.RLock()
	if m.closed || !m.started {
		m.mu.RUnlock()
		return ErrStopped
	}
	m.queue <- it
	m.mu.RUnlock()

	<-it.done
	return nil
}

// Stop stops accepting events, drains the queue and waits for every
// goroutine. Buffered samples are flushed by the recorder before it returns.
func (m *Manager) Stop() {
	log.Info("Manager stopping...")
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	started := m.started
	close(m.queue)
	m.mu.Unlock()

	if m.cancelMonitor != nil {
		m.cancelMonitor()
	}
	m.monitorWg.Wait()

	if started {
		log.Info("Waiting for the event loop to drain...")
		m.loopWg.Wait()
	}

	if started && m.recorder != nil {
		m.recorder.Stop()
	}
	if started && m.listener != nil {
		m.listener.Stop()
	}
	log.Info("Manager stopped.")
}

func (m *Manager) run() {
	defer m.loopWg.Done()
	for it := range m.queue {
		if it.fn != nil {
			m.invoke(it)
			continue
		}
		m.dispatch(it.event)
	}
}

func (m *Manager) invoke(it item) {
	defer close(it.done)
	defer func() {
		if r := recover(); r != nil {
			m.metrics.Panic()
			log.Errorf("Recovered panic in admin call: %v", r)
		}
	}()
	it.fn()
}

// dispatch runs one handler to completion. A panic is contained to the event
// that caused it.
func (m *Manager) dispatch(ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.Panic()
			log.WithFields(log.Fields{"dpid": ev.Datapath(), "event": ev.Kind()}).Errorf("Recovered panic in event handler: %v", r)
		}
	}()
	m.metrics.Event(ev.Kind().String())

	switch e := ev.(type) {
	case model.SwitchConnected:
		m.handleConnected(e)
	case model.SwitchDisconnected:
		m.handleDisconnected(e)
	case model.PacketIn:
		m.handlePacketIn(e)
	case model.FlowStatsReply:
		m.handleStatsReply(e)
	default:
		log.Warnf("Ignoring unknown event type %T", ev)
	}
}

// serviceIdentities lists the virtual service and its backends. Reverse NAT
// rules match on backend addresses, so their counters measure the clients'
// load, not the backends' behavior.
func serviceIdentities(t *vip.Translator) []model.Identity {
	ids := []model.Identity{
		{Kind: model.IdentityIPv4, Value: t.VirtualIP().String()},
		{Kind: model.IdentityMAC, Value: t.VirtualMAC().String()},
	}
	for _, b := range t.Backends() {
		ids = append(ids,
			model.Identity{Kind: model.IdentityIPv4, Value: b.IP.String()},
			model.Identity{Kind: model.IdentityMAC, Value: b.MAC.String()},
		)
	}
	return ids
}

func (m *Manager) onBlock(id model.Identity, switches int) {
	m.metrics.SetBlocks(len(m.mitigation.Blocked()))
	if m.listener != nil {
		m.listener.NotifyBlock(id, switches)
	}
}
