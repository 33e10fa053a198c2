package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
	"github.com/turtacn/rxn-reconciler/pkg/types/common"
)

const (
	// TopicDocumentUpserted carries one envelope per persisted document.
	TopicDocumentUpserted = "reaction.document.upserted"

	// EnvelopeSchemaVersion is bumped whenever the payload shape changes.
	EnvelopeSchemaVersion = "1"

	sourceService = "rxn-reconciler"
)

// Message headers set on every envelope.
const (
	HeaderEventType     = "event_type"
	HeaderSource        = "source_service"
	HeaderSchemaVersion = "schema_version"
	HeaderRunID         = "run_id"
)

// EventEnvelope wraps a DomainEvent for the wire.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	AggregateID   string            `json:"aggregate_id"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope marshals ev into a fresh envelope.
func NewEventEnvelope(ev common.DomainEvent) (*EventEnvelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       ev.EventID(),
		EventType:     ev.EventType(),
		Source:        sourceService,
		Timestamp:     ev.OccurredAt(),
		SchemaVersion: EnvelopeSchemaVersion,
		AggregateID:   ev.AggregateID(),
		Payload:       payload,
	}, nil
}

// DecodePayload unmarshals the payload into target. An absent payload leaves
// target untouched.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode envelope payload")
	}
	return nil
}

// ToMessage renders the envelope as a kafka message keyed by aggregate id,
// so every update of one document lands on the same partition.
func (e *EventEnvelope) ToMessage() (kafka.Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(e.EventType)},
		{Key: HeaderSource, Value: []byte(e.Source)},
		{Key: HeaderSchemaVersion, Value: []byte(e.SchemaVersion)},
	}
	if runID := e.Metadata[HeaderRunID]; runID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRunID, Value: []byte(runID)})
	}
	return kafka.Message{
		Key:     []byte(e.AggregateID),
		Value:   val,
		Headers: headers,
		Time:    e.Timestamp,
	}, nil
}

// EnvelopeFromMessage is the inverse of ToMessage.
func EnvelopeFromMessage(m kafka.Message) (*EventEnvelope, error) {
	if len(m.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicSpec describes a topic to create if missing.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultDocumentTopic is the layout used by `rxnrecon events ensure`.
func DefaultDocumentTopic(name string) TopicSpec {
	return TopicSpec{Name: name, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * 24 * 3600 * 1000}
}

// TopicManager creates topics on the cluster.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to dial kafka")
	}
	return newTopicManagerWithConn(conn, logger), nil
}

func newTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopic creates the topic unless a topic with that name exists.
func (m *TopicManager) EnsureTopic(ctx context.Context, ts TopicSpec) error {
	if ts.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if ts.NumPartitions <= 0 || ts.ReplicationFactor <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "topic %s: partitions and replication factor must be > 0", ts.Name)
	}
	if exists, _ := m.TopicExists(ctx, ts.Name); exists {
		return nil
	}

	tc := kafka.TopicConfig{
		Topic:             ts.Name,
		NumPartitions:     ts.NumPartitions,
		ReplicationFactor: ts.ReplicationFactor,
	}
	if ts.RetentionMs > 0 {
		tc.ConfigEntries = append(tc.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(ts.RetentionMs, 10),
		})
	}
	if err := m.conn.CreateTopics(tc); err != nil {
		if exists, _ := m.TopicExists(ctx, ts.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to create topic").WithDetail(ts.Name)
	}
	m.logger.Info("topic created", logging.String("topic", ts.Name), logging.Int("partitions", ts.NumPartitions))
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}
