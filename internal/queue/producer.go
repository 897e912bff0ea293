// internal/queue/producer.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes dispatch units to the dispatch topic. Messages are
// keyed by alert id so redeliveries for one alert stay on one partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// Enqueue durably publishes one dispatch unit.
func (p *Producer) Enqueue(ctx context.Context, unit DispatchUnit) error {
	value, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("marshal dispatch unit: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(unit.AlertID.String()),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish dispatch unit: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
