/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process schedule events to NATS so playout
// and other instances can follow schedule changes.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/telemetry"
)

const sinkName = "nats"

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "grimnir.schedule",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON envelope published for every event.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(cfg NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	log := logger.With().Str("component", "nats").Logger()
	conn, err := nats.Connect(cfg.URL,
		nats.Name("grimnir-scheduler"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", conn.ConnectedUrl()).Msg("connected to NATS")
	return conn, nil
}

// Forwarder subscribes to the in-process bus and republishes every schedule
// event on "<prefix>.<event type>".
type Forwarder struct {
	bus    *events.Bus
	pub    Publisher
	prefix string
	nodeID string
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	wg   sync.WaitGroup
}

// NewForwarder creates a forwarder publishing through pub.
func NewForwarder(bus *events.Bus, pub Publisher, prefix string, logger zerolog.Logger) *Forwarder {
	if prefix == "" {
		prefix = DefaultNATSConfig().SubjectPrefix
	}
	return &Forwarder{
		bus:    bus,
		pub:    pub,
		prefix: prefix,
		nodeID: nodeID(),
		logger: logger.With().Str("component", "event_forwarder").Logger(),
		subs:   make(map[events.EventType]events.Subscriber),
	}
}

// Start subscribes to every event type and forwards until ctx is done or
// Stop is called.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, et := range events.AllEventTypes {
		if _, ok := f.subs[et]; ok {
			continue
		}
		sub := f.bus.Subscribe(et)
		f.subs[et] = sub

		f.wg.Add(1)
		go f.forward(ctx, et, sub)
	}
}

// Stop unsubscribes from the bus and waits for in-flight publishes.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	for et, sub := range f.subs {
		f.bus.Unsubscribe(et, sub)
		delete(f.subs, et)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// Subject returns the NATS subject for an event type.
func (f *Forwarder) Subject(et events.EventType) string {
	return f.prefix + "." + string(et)
}

func (f *Forwarder) forward(ctx context.Context, et events.EventType, sub events.Subscriber) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			f.publish(et, payload)
		}
	}
}

func (f *Forwarder) publish(et events.EventType, payload events.Payload) {
	data, err := json.Marshal(Message{
		EventType: et,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    f.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(sinkName, "error").Inc()
		f.logger.Error().Err(err).Str("event_type", string(et)).Msg("failed to encode event")
		return
	}

	if err := f.pub.Publish(f.Subject(et), data); err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(sinkName, "error").Inc()
		f.logger.Warn().Err(err).Str("subject", f.Subject(et)).Msg("failed to publish event")
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues(sinkName, "ok").Inc()
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}
