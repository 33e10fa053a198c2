package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EnvelopeHandler receives each decoded envelope. Returning an error stops
// the tail without committing the message.
type EnvelopeHandler func(ctx context.Context, env *EventEnvelope) error

// TailOptions controls where reading starts and when it stops.
type TailOptions struct {
	// GroupID commits progress when set; without it every tail starts from
	// the configured offset.
	GroupID   string
	FromStart bool
	// Limit stops after that many envelopes; 0 means until ctx is done.
	Limit int
}

// Tailer reads document events back from the topic.
type Tailer struct {
	reader  ReaderInterface
	logger  logging.Logger
	commit  bool
	limit   int
	running atomic.Bool
}

func NewTailer(cfg config.KafkaConfig, opts TailOptions, logger logging.Logger) (*Tailer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	start := kafka.LastOffset
	if opts.FromStart {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     opts.GroupID,
		StartOffset: start,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		Dialer:      &kafka.Dialer{ClientID: cfg.ClientID, Timeout: 10 * time.Second, DualStack: true},
	})
	return newTailerWithReader(r, opts, logger), nil
}

func newTailerWithReader(r ReaderInterface, opts TailOptions, logger logging.Logger) *Tailer {
	return &Tailer{reader: r, logger: logger, commit: opts.GroupID != "", limit: opts.Limit}
}

// Run blocks until ctx is done, the limit is reached or handle fails.
// Undecodable messages are logged and skipped.
func (t *Tailer) Run(ctx context.Context, handle EnvelopeHandler) (int, error) {
	if t.running.Swap(true) {
		return 0, ErrAlreadyRunning
	}
	defer t.running.Store(false)

	n := 0
	for t.limit == 0 || n < t.limit {
		m, err := t.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return n, nil
			}
			return n, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to fetch message")
		}

		env, err := EnvelopeFromMessage(m)
		if err != nil {
			t.logger.Warn("skipping undecodable message",
				logging.Int64("offset", m.Offset), logging.Int("partition", m.Partition), logging.Err(err))
		} else {
			if err := handle(ctx, env); err != nil {
				return n, err
			}
			n++
		}

		if t.commit {
			if err := t.reader.CommitMessages(ctx, m); err != nil {
				t.logger.Error("commit failed", logging.Int64("offset", m.Offset), logging.Err(err))
			}
		}
	}
	return n, nil
}

func (t *Tailer) Close() error {
	return t.reader.Close()
}
