package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/ws"
	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// --- helpers ---

type fakeSource struct {
	mu  sync.Mutex
	sum *dashboard.Summary
}

func (f *fakeSource) Summary() (dashboard.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sum == nil {
		return dashboard.Summary{}, domain.ErrNotReady
	}
	return *f.sum, nil
}

func (f *fakeSource) Regions() []string { return []string{"Italy"} }

func snapshot(version uint64) *domain.Snapshot {
	dates := []time.Time{time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)}
	tbl := domain.NewSeriesTable(dates, map[string][]int64{"Italy": {int64(version)}})
	return &domain.Snapshot{Version: version, Confirmed: tbl, Recovered: tbl, Deaths: tbl}
}

func startHub(t *testing.T, src ws.SummarySource) (string, *ws.Hub, context.CancelFunc) {
	t.Helper()

	hub := ws.New(src, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var m ws.Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func waitForClients(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

// --- tests ---

func TestHub_Connect_ReceivesCurrentSummary(t *testing.T) {
	src := &fakeSource{sum: &dashboard.Summary{Version: 3, Regions: 190}}
	url, _, _ := startHub(t, src)

	m := readMessage(t, dial(t, url))

	assert.Equal(t, ws.EventSnapshot, m.Event)
	assert.Equal(t, uint64(3), m.Data.Version)
	assert.Equal(t, 190, m.Data.Regions)
}

func TestHub_PublishBroadcastsToAllClients(t *testing.T) {
	url, hub, _ := startHub(t, &fakeSource{})

	conns := []*websocket.Conn{dial(t, url), dial(t, url), dial(t, url)}
	waitForClients(t, hub, 3)

	require.NoError(t, hub.Publish(context.Background(), snapshot(5)))

	for _, conn := range conns {
		m := readMessage(t, conn)
		assert.Equal(t, ws.EventSnapshot, m.Event)
		assert.Equal(t, uint64(5), m.Data.Version)
		assert.Equal(t, dashboard.Totals{Confirmed: 5, Recovered: 5, Deaths: 5}, m.Data.Latest["Italy"])
	}
}

func TestHub_NotReady_NoInitialMessage(t *testing.T) {
	url, hub, _ := startHub(t, &fakeSource{})

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no message expected before the first snapshot")
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	url, hub, _ := startHub(t, &fakeSource{})

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_CancelClosesConnections(t *testing.T) {
	url, hub, cancel := startHub(t, &fakeSource{})

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	cancel()
	waitForClients(t, hub, 0)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed by the hub")
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := ws.New(&fakeSource{}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
