// Package notify pushes chain updates to the downstream consumers that sit
// outside this core: a Kafka feed for the dashboard/renderer and a Slack
// notifier for operator escalations. Both are optional and best-effort.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mrsingh86/chronicled/internal/chain"
	"github.com/mrsingh86/chronicled/internal/config"
)

// envelope is the JSON shape published per chain update.
type envelope struct {
	Kind       string       `json:"kind"`
	ShipmentID string       `json:"shipment_id"`
	Chain      *chain.Chain `json:"chain,omitempty"`
	At         time.Time    `json:"at"`
}

// chainWriter is the slice of the kafka writer we use; tests stub it.
type chainWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed publishes chain updates to a topic. It implements chain.Feed.
type KafkaFeed struct {
	writer chainWriter
}

// NewKafkaFeed builds a feed from config.
func NewKafkaFeed(cfg config.KafkaConfig) *KafkaFeed {
	return &KafkaFeed{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish sends one chain update keyed by shipment so per-shipment order is
// preserved.
func (f *KafkaFeed) Publish(ctx context.Context, kind string, c *chain.Chain) error {
	env := envelope{Kind: kind, ShipmentID: c.ShipmentID, At: time.Now().UTC()}
	if kind != chain.FeedChainSuperseded {
		env.Chain = c
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal chain update: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(c.ShipmentID),
		Value: payload,
		Time:  env.At,
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish chain update: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (f *KafkaFeed) Close() error {
	return f.writer.Close()
}
