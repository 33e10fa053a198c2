// Package kafka publishes a change event for every reconciled document and
// reads them back for inspection.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
	"github.com/turtacn/rxn-reconciler/pkg/types/common"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeMessageQueue, "producer closed")
	ErrPublishFailed  = errors.New(errors.ErrCodeMessageQueue, "publish failed")
)

// ProducerMetrics are plain counters read by tests and the worker log line.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// Producer is the document-event sink.
type Producer struct {
	writer  WriterInterface
	topic   string
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
}

var _ reaction.Sink = (*Producer)(nil)

// NewProducer builds a hash-balanced writer so events for one document keep
// their order.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  kafka.Snappy,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID, DialTimeout: 10 * time.Second},
	}
	logger.Info("kafka producer configured",
		logging.Any("brokers", cfg.Brokers), logging.String("topic", cfg.Topic))
	return newProducerWithWriter(w, cfg.Topic, logger), nil
}

func newProducerWithWriter(w WriterInterface, topic string, logger logging.Logger) *Producer {
	return &Producer{
		writer:  w,
		topic:   topic,
		logger:  logger,
		metrics: &ProducerMetrics{},
	}
}

// ValidateProducerConfig checks the fields NewProducer relies on.
func ValidateProducerConfig(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "kafka: topic required")
	}
	switch cfg.RequiredAcks {
	case -1, 0, 1:
	default:
		return errors.Newf(errors.ErrCodeValidation, "kafka: required_acks must be -1, 0 or 1, got %d", cfg.RequiredAcks)
	}
	return nil
}

func (p *Producer) Name() string { return "kafka" }

func (p *Producer) RheaUpserted(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	return p.Publish(ctx, reaction.NewRheaUpsertedEvent(rec, reaction.RunIDFromContext(ctx)))
}

func (p *Producer) EnzymeUpserted(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	return p.Publish(ctx, reaction.NewEnzymeUpsertedEvent(rec, reaction.RunIDFromContext(ctx)))
}

// Publish writes one event synchronously.
func (p *Producer) Publish(ctx context.Context, ev *reaction.DocumentUpsertedEvent) error {
	return p.PublishBatch(ctx, []common.DomainEvent{ev})
}

// PublishBatch writes events in one call; kafka-go splits them into batches.
func (p *Producer) PublishBatch(ctx context.Context, events []common.DomainEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	var size int64
	for _, ev := range events {
		env, err := NewEventEnvelope(ev)
		if err != nil {
			return err
		}
		if du, ok := ev.(*reaction.DocumentUpsertedEvent); ok && du.RunID != "" {
			env.Metadata = map[string]string{HeaderRunID: du.RunID}
		}
		m, err := env.ToMessage()
		if err != nil {
			return err
		}
		size += int64(len(m.Value))
		msgs = append(msgs, m)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.MessagesFailed.Add(int64(len(msgs)))
		p.logger.Error("failed to publish document events",
			logging.String("topic", p.topic), logging.Int("count", len(msgs)), logging.Err(err))
		return ErrPublishFailed.WithCause(err)
	}
	p.metrics.MessagesSent.Add(int64(len(msgs)))
	p.metrics.BytesSent.Add(size)
	p.logger.Debug("document events published",
		logging.String("topic", p.topic), logging.Int("count", len(msgs)))
	return nil
}

// Metrics exposes the producer counters.
func (p *Producer) Metrics() *ProducerMetrics { return p.metrics }

func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
