// Package audit streams relayed chat and location events to kafka so
// downstream consumers can persist chat logs and position history
// without the relay ever writing to the record store.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Event struct {
	Kind      string    `json:"kind"` // "chat" or "location"
	RouteID   string    `json:"route_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	At        time.Time `json:"at"`
}

type KafkaSink struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaSink{writer: w, logger: logger}
}

func (k *KafkaSink) ChatRelayed(ctx context.Context, routeID, userID, text string) {
	k.publish(ctx, Event{Kind: "chat", RouteID: routeID, UserID: userID, Text: text, At: time.Now()})
}

func (k *KafkaSink) LocationRelayed(ctx context.Context, routeID, userID string, lat, lon float64) {
	k.publish(ctx, Event{Kind: "location", RouteID: routeID, UserID: userID, Latitude: lat, Longitude: lon, At: time.Now()})
}

// publish is fire-and-forget with a short timeout; an unreachable
// broker must never stall or fail a relay.
func (k *KafkaSink) publish(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(e)
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RouteID), Value: b}); err != nil {
		k.logger.Warn("audit publish failed", "kind", e.Kind, "route", e.RouteID, "error", err)
	}
}

func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
