package alerter

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BlockEvent records one identity being blocked.
type BlockEvent struct {
	ID       string
	Identity model.Identity
	Switches int
	At       time.Time
}

// Alerter collects block events and, once per check interval, logs a
// summary and sends one consolidated notification.
type Alerter struct {
	notifier      model.Notifier
	checkInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	pending []BlockEvent

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter. notifier may be nil, in which case
// summaries are only logged.
func NewAlerter(cfg *config.AlerterConfig, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be a positive duration")
	}
	return &Alerter{
		notifier:      notifier,
		checkInterval: interval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}, nil
}

// NotifyBlock queues a block event for the next summary.
func (a *Alerter) NotifyBlock(id model.Identity, switches int) {
	ev := BlockEvent{
		ID:       uuid.NewString(),
		Identity: id,
		Switches: switches,
		At:       a.now(),
	}
	a.mu.Lock()
	a.pending = append(a.pending, ev)
	a.mu.Unlock()
}

// Start begins the periodic summaries.
func (a *Alerter) Start() {
	log.Infof("Alerter started, summarizing every %v", a.checkInterval)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.Flush()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop ends the loop and sends a final summary for anything still pending.
func (a *Alerter) Stop() {
	a.stopOnce.Do(func() {
		log.Info("Stopping Alerter...")
		close(a.stopChan)
		a.wg.Wait()
		a.Flush()
	})
}

// Flush summarizes and clears the pending events. It returns how many were sent.
func (a *Alerter) Flush() int {
	a.mu.Lock()
	events := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(events) == 0 {
		return 0
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.Identity.String())
	}
	log.WithField("blocked", strings.Join(ids, ",")).Warnf("%d source(s) blocked since the last check", len(events))

	if a.notifier != nil {
		subject := fmt.Sprintf("Go2NetSDN Block Summary (%d Blocked)", len(events))
		if err := a.notifier.Send(subject, renderSummary(events)); err != nil {
			log.WithError(err).Error("Failed to send consolidated block notification")
		} else {
			log.Info("Consolidated block notification sent successfully.")
		}
	}
	return len(events)
}

func renderSummary(events []BlockEvent) string {
	var b strings.Builder
	b.WriteString("<h1>Go2NetSDN Block Summary</h1>")
	b.WriteString("<p>The following sources were classified as attackers and blocked on every switch:</p>")
	b.WriteString("<table><tr><th>Time</th><th>Kind</th><th>Source</th><th>Switches</th><th>Event</th></tr>")
	for _, ev := range events {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>",
			ev.At.UTC().Format(time.RFC3339),
			html.EscapeString(string(ev.Identity.Kind)),
			html.EscapeString(ev.Identity.Value),
			ev.Switches,
			ev.ID,
		)
	}
	b.WriteString("</table><p>Blocks stay in place until removed through the admin API.</p>")
	return b.String()
}
