package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// maxErrorBody bounds how much of a non-200 response body is kept in errors.
const maxErrorBody = 512

// Client fetches the three JHU tables from http(s) URLs, file:// URLs or
// bare filesystem paths.
type Client struct {
	locations  map[domain.SourceName]string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a source client. Deadlines come from the context passed
// to Fetch, so the underlying http.Client carries no timeout of its own.
func NewClient(locations map[domain.SourceName]string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		locations:  locations,
		httpClient: &http.Client{},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch downloads and parses the CSV for name. Network, status, read and CSV
// errors are returned as *domain.TransportError.
func (c *Client) Fetch(ctx context.Context, name domain.SourceName) (domain.RawTable, error) {
	loc, ok := c.locations[name]
	if !ok || loc == "" {
		return domain.RawTable{}, &domain.TransportError{Source: name, Err: errors.New("no location configured")}
	}

	start := time.Now()
	table, n, err := c.fetch(ctx, name, loc)
	c.metrics.SourceFetchDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	c.metrics.SourceBytes.WithLabelValues(string(name)).Add(float64(n))
	if err != nil {
		c.metrics.SourceErrors.WithLabelValues(string(name)).Inc()
		return domain.RawTable{}, err
	}

	c.logger.Debug("source fetched",
		"source", name,
		"location", loc,
		"bytes", n,
		"records", len(table.Records),
		"duration", time.Since(start),
	)
	return table, nil
}

func (c *Client) fetch(ctx context.Context, name domain.SourceName, loc string) (domain.RawTable, int64, error) {
	body, err := c.open(ctx, loc)
	if err != nil {
		return domain.RawTable{}, 0, &domain.TransportError{Source: name, Err: err}
	}
	defer body.Close()

	cr := &countingReader{r: body}
	table, err := parseCSV(name, cr)
	return table, cr.n, err
}

func (c *Client) open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if path, ok := LocalPath(loc); ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

// LocalPath reports whether loc names a file on disk and returns its path.
// file:// URLs and locations without a scheme are local.
func LocalPath(loc string) (string, bool) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" {
		return loc, true
	}
	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return u.Host + u.Path, true
		}
		return u.Path, true
	case "http", "https":
		return "", false
	default:
		// Windows drive letters parse as a one-letter scheme.
		if len(u.Scheme) == 1 {
			return loc, true
		}
		return "", false
	}
}

func parseCSV(name domain.SourceName, r io.Reader) (domain.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return domain.RawTable{}, &domain.TransportError{Source: name, Err: fmt.Errorf("parse csv: %w", err)}
	}
	if len(records) == 0 {
		return domain.RawTable{}, &domain.TransportError{Source: name, Err: errors.New("empty table")}
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return domain.RawTable{Source: name, Header: header, Records: records[1:]}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Locations maps configured source locations to their source names.
func Locations(s config.Sources) map[domain.SourceName]string {
	return map[domain.SourceName]string{
		domain.SourceConfirmed: s.Confirmed,
		domain.SourceRecovered: s.Recovered,
		domain.SourceDeath:     s.Death,
	}
}
