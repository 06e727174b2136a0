package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

type captureWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func testSnapshot() *domain.Snapshot {
	dates := []time.Time{
		time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	return &domain.Snapshot{
		Version:   12,
		FetchedAt: time.Date(2020, 3, 16, 8, 0, 0, 0, time.UTC),
		Confirmed: domain.NewSeriesTable(dates, map[string][]int64{"Italy": {0, 24747}, "Spain": {0, 7798}}),
		Recovered: domain.NewSeriesTable(dates, map[string][]int64{"Italy": {0, 2335}, "Spain": {0, 517}}),
		Deaths:    domain.NewSeriesTable(dates, map[string][]int64{"Italy": {0, 1809}, "Spain": {0, 289}}),
	}
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2020, 3, 16, 8, 0, 5, 0, time.UTC)

	msg, err := serializeToMessage(testSnapshot(), []string{"Italy"}, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("12"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventTypeSnapshotPublished), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var event SnapshotEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, uint64(12), event.Version)
	assert.Equal(t, "2020-01-22", event.FirstDate)
	assert.Equal(t, "2020-03-15", event.LastDate)
	assert.Equal(t, 2, event.Regions)
	assert.True(t, now.Equal(event.PublishedAt))
	require.Contains(t, event.Latest, "Italy")
	assert.NotContains(t, event.Latest, "Spain")
	assert.Equal(t, int64(24747), event.Latest["Italy"].Confirmed)
	assert.Equal(t, int64(1809), event.Latest["Italy"].Deaths)
}

func TestWriter_Publish(t *testing.T) {
	cw := &captureWriter{}
	w := &Writer{
		writer:  cw,
		regions: []string{"Italy", "Spain"},
		now:     func() time.Time { return time.Date(2020, 3, 16, 9, 0, 0, 0, time.UTC) },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, w.Publish(context.Background(), testSnapshot()))
	require.Len(t, cw.msgs, 1)
	assert.JSONEq(t, `{"confirmed":7798,"recovered":517,"deaths":289}`, mustField(t, cw.msgs[0].Value, "latest", "Spain"))

	cw.err = errors.New("leader not available")
	err := w.Publish(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write snapshot event")

	require.NoError(t, w.Close())
	assert.True(t, cw.closed)
}

func mustField(t *testing.T, data []byte, path ...string) string {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(data, &v))
	for _, p := range path {
		m, ok := v.(map[string]any)
		require.True(t, ok, "not an object at %q", p)
		v = m[p]
	}
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return string(out)
}
