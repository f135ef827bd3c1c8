// Package recorder persists classified flow samples in the background.
package recorder

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/factory"
	"Go2NetSDN/internal/model"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// sink buffers records for one writer between flushes.
type sink struct {
	writer  model.Writer
	limit   int
	mu      sync.Mutex
	pending []model.SampleRecord
}

// Recorder buffers samples and flushes them to every writer on the writer's
// own interval. Record never blocks; samples are dropped when buffers are full.
type Recorder struct {
	intake  chan model.SampleRecord
	sinks   []*sink
	dropped atomic.Uint64

	mu      sync.RWMutex
	started bool
	closed  bool

	done      chan struct{}
	collectWg sync.WaitGroup
	flushWg   sync.WaitGroup
}

// New creates a recorder from the configured writers.
func New(cfg config.RecorderConfig) (*Recorder, error) {
	writers, err := factory.CreateWriters(cfg.Writers)
	if err != nil {
		return nil, err
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("recorder enabled but no writers are enabled")
	}
	return NewWithWriters(cfg.BufferSize, writers...), nil
}

// NewWithWriters creates a recorder over existing writers. bufferSize bounds
// both the intake queue and each writer's pending batch.
func NewWithWriters(bufferSize int, writers ...model.Writer) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	r := &Recorder{
		intake: make(chan model.SampleRecord, bufferSize),
		done:   make(chan struct{}),
	}
	for _, w := range writers {
		r.sinks = append(r.sinks, &sink{writer: w, limit: bufferSize})
	}
	return r
}

// Start launches the collector and one flusher per writer.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	r.collectWg.Add(1)
	go r.collect()

	for _, s := range r.sinks {
		r.flushWg.Add(1)
		go r.runFlusher(s)
		log.Infof("Started sample flusher with interval %s", s.writer.GetInterval())
	}
}

// Record queues rec. It returns immediately.
func (r *Recorder) Record(rec model.SampleRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.intake <- rec:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of samples discarded because a buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) collect() {
	defer r.collectWg.Done()
	for rec := range r.intake {
		for _, s := range r.sinks {
			s.mu.Lock()
			if len(s.pending) < s.limit {
				s.pending = append(s.pending, rec)
			} else {
				r.dropped.Add(1)
			}
			s.mu.Unlock()
		}
	}
}

func (r *Recorder) runFlusher(s *sink) {
	defer r.flushWg.Done()
	ticker := time.NewTicker(s.writer.GetInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-r.done:
			s.flush()
			return
		}
	}
}

func (s *sink) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := s.writer.Write(batch); err != nil {
		log.WithError(err).Errorf("Error writing %d samples", len(batch))
	}
}

// Stop flushes everything recorded so far and closes the writers.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	started := r.started
	close(r.intake)
	r.mu.Unlock()

	if started {
		r.collectWg.Wait()
		close(r.done)
		r.flushWg.Wait()
	}
	for _, s := range r.sinks {
		if err := s.writer.Close(); err != nil {
			log.WithError(err).Warn("Error closing sample writer")
		}
	}
	if n := r.Dropped(); n > 0 {
		log.Warnf("Recorder dropped %d samples", n)
	}
	log.Info("Recorder stopped.")
}
