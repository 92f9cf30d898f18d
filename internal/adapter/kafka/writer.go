package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-query-service/internal/config"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the adapter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes query records to a Kafka topic.
// It implements domain.QueryRecorder.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured query topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaQueryTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// RecordQuery serializes and publishes a single query record.
func (w *Writer) RecordQuery(ctx context.Context, rec domain.QueryRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish query record: %w", err)
	}
	w.logger.Debug("query recorded", "query_id", rec.ID, "kind", rec.Kind)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a QueryRecord into a Kafka message keyed by its ID.
func serializeToMessage(rec domain.QueryRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize query record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID.String()),
		Value: data,
		Time:  rec.HandledAt,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(rec.Kind)},
			{Key: "total", Value: []byte(strconv.Itoa(rec.Total))},
			{Key: "handled_at", Value: []byte(rec.HandledAt.Format(time.RFC3339))},
		},
	}, nil
}
