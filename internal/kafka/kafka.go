// Package kafka publishes ledger commit events to a Kafka topic and reads
// them back for the mirror sync worker.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"saldo/internal/events"
	"saldo/internal/log"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

var _ events.Notifier = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: log.For(logger, log.ComponentKafka),
	}
}

// Notify writes the change keyed by its version.
func (p *Publisher) Notify(ctx context.Context, c events.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(c.Version, 10)),
		Value: data,
		Time:  c.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	p.logger.InfoContext(ctx, "Published ledger commit",
		log.FieldVersion, c.Version,
		log.FieldOperation, c.Operation,
		"topic", p.topic)
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }

type Consumer struct {
	reader messageReader
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		logger: log.For(logger, log.ComponentKafka),
	}
}

// Consume hands every change to handler and commits its offset once handled.
// Undecodable messages are committed and skipped; a handler error stops
// consumption without committing so the message is redelivered.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, events.Change) error) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var change events.Change
		if err := json.Unmarshal(m.Value, &change); err != nil {
			c.logger.ErrorContext(ctx, "Failed to unmarshal message",
				log.FieldError, err, "offset", m.Offset)
		} else if err := handler(ctx, change); err != nil {
			return fmt.Errorf("handle version %d: %w", change.Version, err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit offset %d: %w", m.Offset, err)
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
