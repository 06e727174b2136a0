package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// EventTypeSnapshotPublished is the event_type header of every message.
const EventTypeSnapshotPublished = "snapshot.published"

// SnapshotEvent is the JSON payload announcing a newly published snapshot.
type SnapshotEvent struct {
	dashboard.Summary
	PublishedAt time.Time `json:"published_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one SnapshotEvent per published snapshot.
// It implements pipeline.Publisher.
type Writer struct {
	writer  messageWriter
	regions []string
	now     func() time.Time
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, regions: cfg.Regions, now: time.Now, logger: logger}
}

// Publish serializes a summary of snap and writes it to the topic.
func (w *Writer) Publish(ctx context.Context, snap *domain.Snapshot) error {
	msg, err := serializeToMessage(snap, w.regions, w.now().UTC())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot event: %w", err)
	}
	w.logger.Debug("snapshot event written", "version", snap.Version)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a snapshot summary into a Kafka message keyed
// by snapshot version.
func serializeToMessage(snap *domain.Snapshot, regions []string, publishedAt time.Time) (kafkago.Message, error) {
	event := SnapshotEvent{
		Summary:     dashboard.Summarize(snap, regions),
		PublishedAt: publishedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(snap.Version, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeSnapshotPublished)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
