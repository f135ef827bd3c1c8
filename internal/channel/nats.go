// Package channel carries switch events into the controller and switch
// commands out of it.
package channel

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// EventsSubject is where switch agents publish events.
func EventsSubject(prefix string) string {
	return prefix + ".events"
}

// CommandSubject is where the controller publishes commands for one switch.
func CommandSubject(prefix string, dpid model.DatapathID) string {
	return prefix + ".cmd." + dpid.String()
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS is a switch channel over a NATS connection. Switch agents publish
// JSON events and consume JSON commands.
type NATS struct {
	nc     *nats.Conn
	pub    publisher
	prefix string
	sub    *nats.Subscription
}

// Connect dials the NATS server, retrying with exponential backoff until
// cfg.ConnectTimeout elapses. Later reconnects are left to the client.
func Connect(ctx context.Context, cfg config.ChannelConfig) (*NATS, error) {
	timeout, err := time.ParseDuration(cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid channel connect_timeout: %w", err)
	}

	opts := []nats.Option{
		nats.Name("sdn-controller"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS connection lost")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to NATS server at %s", nc.ConnectedUrl())
		}),
	}

	nc, err := backoff.Retry(ctx, func() (*nats.Conn, error) {
		return nats.Connect(cfg.NATSURL, opts...)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithError(err).Warnf("NATS connect failed, retrying in %v", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return NewNATS(nc, cfg.SubjectPrefix), nil
}

// NewNATS wraps an established connection.
func NewNATS(nc *nats.Conn, prefix string) *NATS {
	return &NATS{nc: nc, pub: nc, prefix: prefix}
}

// Start subscribes to the events subject and hands every decoded event to
// handler. Malformed messages are logged and dropped.
func (n *NATS) Start(handler func(model.Event)) error {
	subject := EventsSubject(n.prefix)
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		ev, err := decodeMessage(msg.Data)
		if err != nil {
			log.WithError(err).Warn("Dropping malformed switch event")
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	n.sub = sub
	log.Infof("Subscribed to '%s'. Waiting for switch events...", subject)
	return nil
}

func decodeMessage(data []byte) (model.Event, error) {
	var w Event
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return Decode(w)
}

func (n *NATS) send(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", cmd.Op, err)
	}
	return n.pub.Publish(CommandSubject(n.prefix, model.DatapathID(cmd.DPID)), data)
}

func (n *NATS) InstallRule(dpid model.DatapathID, rule model.Rule) error {
	return n.send(Command{Op: OpInstallRule, DPID: uint64(dpid), Rule: encodeRule(rule)})
}

func (n *NATS) RemoveRule(dpid model.DatapathID, priority uint16, match model.Match) error {
	m := encodeMatch(match)
	return n.send(Command{Op: OpRemoveRule, DPID: uint64(dpid), Priority: priority, Match: &m})
}

func (n *NATS) PacketOut(dpid model.DatapathID, out model.PacketOut) error {
	return n.send(Command{Op: OpPacketOut, DPID: uint64(dpid), PacketOut: &PacketOut{
		InPort:   uint32(out.InPort),
		BufferID: out.BufferID,
		Actions:  encodeActions(out.Actions),
		Data:     out.Data,
	}})
}

func (n *NATS) RequestFlowStats(dpid model.DatapathID) error {
	return n.send(Command{Op: OpFlowStats, DPID: uint64(dpid)})
}

// PublishEvent publishes ev on the events subject, acting as a switch agent.
func (n *NATS) PublishEvent(ev model.Event) error {
	data, err := json.Marshal(Encode(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.pub.Publish(EventsSubject(n.prefix), data)
}

// Flush waits until the server has processed every published message.
func (n *NATS) Flush() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Flush()
}

// Close unsubscribes and drains the NATS connection.
func (n *NATS) Close() {
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	if n.nc != nil {
		n.nc.Drain()
		log.Info("NATS connection drained and closed.")
	}
}
