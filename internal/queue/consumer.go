// internal/queue/consumer.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/common/logger"

	"github.com/segmentio/kafka-go"
	"github.com/xeipuuv/gojsonschema"
)

// UnitHandler processes one dispatch unit. Errors are the handler's own
// business (the dispatcher retries internally and records FAILED); the
// consumer commits regardless, preserving at-least-once semantics at the
// queue boundary only.
type UnitHandler interface {
	HandleUnit(ctx context.Context, unit DispatchUnit)
}

// messageReader is the part of kafka.Reader's API the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads dispatch units from the dispatch topic through a consumer
// group and fans them out over a bounded worker pool. Messages are sharded
// to workers by partition: committing offset N acknowledges everything up
// to N on that partition, so a partition's messages must be handled and
// committed in order or a crash could skip an uncommitted earlier unit.
// Payloads are schema-validated before they reach the handler; malformed
// ones are dropped.
type Consumer struct {
	reader  messageReader
	handler UnitHandler
	schema  *gojsonschema.Schema
	workers int
	logger  logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, workers int, handler UnitHandler, log logger.Logger) (*Consumer, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return newConsumer(reader, workers, handler, log)
}

func newConsumer(reader messageReader, workers int, handler UnitHandler, log logger.Logger) (*Consumer, error) {
	if workers <= 0 {
		workers = 1
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(DispatchUnitSchema))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch unit schema: %w", err)
	}

	return &Consumer{
		reader:  reader,
		handler: handler,
		schema:  schema,
		workers: workers,
		logger:  log,
	}, nil
}

// Run blocks, consuming until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	shards := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		shard := make(chan kafka.Message)
		shards[i] = shard
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range shard {
				c.process(ctx, msg)
				if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
					c.logger.Error("commit failed", map[string]interface{}{
						"partition": msg.Partition,
						"offset":    msg.Offset,
						"error":     err.Error(),
					})
				}
			}
		}()
	}

	var fetchErr error
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				fetchErr = err
			}
			break
		}
		// Same partition, same worker. Keeps handling and commits ordered
		// within each partition.
		shard := shards[msg.Partition%c.workers]
		select {
		case <-ctx.Done():
		case shard <- msg:
		}
		if ctx.Err() != nil {
			break
		}
	}

	for _, shard := range shards {
		close(shard)
	}
	wg.Wait()

	if closeErr := c.reader.Close(); closeErr != nil && fetchErr == nil {
		fetchErr = closeErr
	}
	return fetchErr
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(msg.Value))
	if err != nil || !result.Valid() {
		details := "unparseable payload"
		if err == nil {
			details = fmt.Sprintf("%v", result.Errors())
		}
		dropErr := stderrors.NewInvalidDispatchUnitError(details)
		c.logger.Error("dropping invalid dispatch unit", map[string]interface{}{
			"offset": msg.Offset,
			"code":   dropErr.Code,
			"error":  dropErr.Error(),
		})
		return
	}

	var unit DispatchUnit
	if err := json.Unmarshal(msg.Value, &unit); err != nil {
		dropErr := stderrors.NewInvalidDispatchUnitError(err.Error())
		c.logger.Error("dropping undecodable dispatch unit", map[string]interface{}{
			"offset": msg.Offset,
			"code":   dropErr.Code,
			"error":  dropErr.Error(),
		})
		return
	}

	c.handler.HandleUnit(ctx, unit)
}
