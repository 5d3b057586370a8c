package session

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	EventSignedIn  = "signed_in"
	EventSignedOut = "signed_out"
)

// AuthEvent is what the auth supplier publishes when a session signs in or
// out. Events arrive per session, not per user: two devices signed into the
// same account have distinct session ids.
type AuthEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Event     string `json:"event"`
}

// GateLookup finds the gate for a live session. It returns false for
// sessions this process has never seen; their gates resolve on first use.
type GateLookup func(sessionID string) (*Gate, bool)

// Consumer subscribes to the auth supplier's event topic and pushes state
// changes into session gates, replacing any need to poll for a login flag.
type Consumer struct {
	reader *kafka.Reader
	lookup GateLookup
	log    *logrus.Entry
}

func NewConsumer(brokers []string, topic, groupID string, lookup GateLookup, log *logrus.Entry) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, lookup: lookup, log: log}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Warn("failed to read auth event")
			}
			continue
		}
		c.handleMessage(m.Value)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Warn("failed to close auth event reader")
	}
}

func (c *Consumer) handleMessage(value []byte) {
	var event AuthEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.log.WithError(err).Warn("failed to parse auth event")
		return
	}
	if event.SessionID == "" {
		c.log.Warn("auth event missing session_id")
		return
	}

	gate, ok := c.lookup(event.SessionID)
	if !ok {
		return
	}

	switch event.Event {
	case EventSignedIn:
		if event.UserID == "" {
			c.log.WithField("session_id", event.SessionID).Warn("signed_in event missing user_id")
			return
		}
		gate.SetAuthenticated(event.UserID)
	case EventSignedOut:
		gate.SetAnonymous()
	default:
		c.log.WithField("event", event.Event).Warn("unknown auth event type")
	}
}
