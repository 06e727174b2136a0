package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/chart"
	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// ChartService answers dashboard queries against the current snapshot.
type ChartService interface {
	Regions() []string
	Catalog() []dashboard.Definition
	Summary() (dashboard.Summary, error)
	Chart(ctx context.Context, id dashboard.ChartID, region string) (*dashboard.Chart, error)
}

// ChartRenderer draws a chart as a PNG image.
type ChartRenderer interface {
	Render(ctx context.Context, c *dashboard.Chart, w io.Writer) error
}

// Server exposes the dashboard API, chart images, the live update socket,
// and health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        ChartService
	renderer   ChartRenderer
	logger     *slog.Logger
}

// NewServer creates the dashboard HTTP server. live serves /ws and may be nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, svc ChartService, renderer ChartRenderer, live http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:      svc,
		renderer: renderer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /api/charts", s.handleCatalog)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/charts/{chart}/{region}", s.handleChartJSON)
	mux.HandleFunc("GET /charts/{chart}/{region}", s.handleChartPNG)
	if live != nil {
		mux.Handle("GET /ws", live)
	}
	mux.HandleFunc("GET /{$}", s.handlePage)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"regions": s.svc.Regions()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]dashboard.Definition{"charts": s.svc.Catalog()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.svc.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) handleChartJSON(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Chart(r.Context(), dashboard.ChartID(r.PathValue("chart")), r.PathValue("region"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	region := strings.TrimSuffix(r.PathValue("region"), ".png")
	c, err := s.svc.Chart(r.Context(), dashboard.ChartID(r.PathValue("chart")), region)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(r.Context(), c, &buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Snapshot-Version", strconv.FormatUint(c.Version, 10))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client went away
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var undefined *domain.UndefinedMetricError
	switch {
	case errors.Is(err, domain.ErrNotReady):
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	case errors.As(err, &undefined):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "not found", "error": err.Error()})
	case errors.Is(err, chart.ErrNoData):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "no data"})
	default:
		s.logger.Error("request failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
	}
}
