package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/httpclient"
)

const (
	// restPageSize is the page size used when scanning the readings table.
	restPageSize = 1000
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// RESTStore implements Interface on a PostgREST compatible endpoint
// such as a hosted Supabase project.
type RESTStore struct {
	Settings *conf.Settings

	client     *httpclient.Client
	httpConfig *httpclient.Config
	baseURL    *url.URL
	metrics    QueryRecorder
}

// Backend names the implementation.
func (s *RESTStore) Backend() string {
	return conf.BackendREST
}

// Open validates the endpoint and prepares the HTTP client. No request is made.
func (s *RESTStore) Open() error {
	restSettings := s.Settings.Backend.REST

	base, err := url.Parse(strings.TrimRight(restSettings.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.Newf("invalid rest backend url %q", restSettings.URL).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cfg := httpclient.DefaultConfig()
	if s.httpConfig != nil {
		cfg = *s.httpConfig
	}
	if restSettings.Timeout > 0 {
		cfg.DefaultTimeout = restSettings.Timeout
	}
	headers := http.Header{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers.Set("Accept", "application/json")
	if restSettings.APIKey != "" {
		headers.Set("apikey", restSettings.APIKey)
		headers.Set("Authorization", "Bearer "+restSettings.APIKey)
	}
	cfg.Headers = headers

	s.baseURL = base
	s.client = httpclient.New(&cfg)
	return nil
}

// Close releases idle connections.
func (s *RESTStore) Close() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

// Client exposes the HTTP client, nil before Open.
func (s *RESTStore) Client() *httpclient.Client {
	return s.client
}

func (s *RESTStore) tableURL(table string, query url.Values) string {
	u := *s.baseURL
	u.Path = u.Path + "/" + table
	u.RawQuery = query.Encode()
	return u.String()
}

// get issues a GET and decodes the JSON array into out, returning the response headers.
func (s *RESTStore) get(ctx context.Context, table string, query url.Values, header http.Header, out any) (http.Header, error) {
	if s.client == nil {
		return nil, ErrNotOpen
	}
	resp, err := s.client.Get(ctx, s.tableURL(table, query), header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", table, err)
		}
	}
	return resp.Header, nil
}

func (s *RESTStore) post(ctx context.Context, table string, query url.Values, header http.Header, body any) error {
	if s.client == nil {
		return ErrNotOpen
	}
	resp, err := s.client.PostJSON(ctx, s.tableURL(table, query), header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return errors.Newf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
		Component("datastore").
		Category(errors.CategoryHTTP).
		Context("status_code", resp.StatusCode).
		Build()
}

// GetNodes returns the full node directory.
func (s *RESTStore) GetNodes(ctx context.Context) (nodes []Node, err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QueryNodes, start, err) }(time.Now())

	query := url.Values{}
	query.Set("select", "id,referred_by")
	query.Set("order", "id.asc")
	_, err = s.get(ctx, "nodes", query, nil, &nodes)
	return nodes, err
}

// restReading mirrors Reading with a lenient timestamp, since timestamp
// columns without a zone come back without an offset.
type restReading struct {
	ID          uint64  `json:"id"`
	NodeID      string  `json:"node_id"`
	Location    string  `json:"location"`
	PressureHpa float64 `json:"pressure_hpa"`
	DecibelDB   float64 `json:"decibel_db"`
	Timestamp   string  `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and the zone-less forms Postgres emits. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// GetRecentReadings returns at most limit readings, newest first.
func (s *RESTStore) GetRecentReadings(ctx context.Context, limit int) (readings []Reading, err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QueryRecent, start, err) }(time.Now())

	query := url.Values{}
	query.Set("select", "id,node_id,location,pressure_hpa,decibel_db,timestamp")
	query.Set("order", "timestamp.desc")
	query.Set("limit", strconv.Itoa(limit))

	var rows []restReading
	if _, err = s.get(ctx, "readings", query, nil, &rows); err != nil {
		return nil, err
	}

	readings = make([]Reading, 0, len(rows))
	for _, r := range rows {
		ts, perr := ParseTimestamp(r.Timestamp)
		if perr != nil {
			log.Debug("reading with unparsable timestamp", "id", r.ID, "timestamp", r.Timestamp)
		}
		readings = append(readings, Reading{
			ID:          r.ID,
			NodeID:      r.NodeID,
			Location:    r.Location,
			PressureHpa: r.PressureHpa,
			DecibelDB:   r.DecibelDB,
			Timestamp:   ts,
		})
	}
	return readings, nil
}

// CountReadings asks the server for an exact count and reads it from Content-Range.
func (s *RESTStore) CountReadings(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QueryCount, start, err) }(time.Now())

	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")
	header := http.Header{}
	header.Set("Prefer", "count=exact")

	respHeader, err := s.get(ctx, "readings", query, header, nil)
	if err != nil {
		return 0, err
	}
	return ParseContentRangeTotal(respHeader.Get("Content-Range"))
}

// ParseContentRangeTotal extracts the total from values like "0-0/1234" or "*/0".
func ParseContentRangeTotal(v string) (int64, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("content-range %q carries no total", v)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("content-range %q: %w", v, err)
	}
	return n, nil
}

// GetReadingCounts pages through node ids of all readings and counts them.
func (s *RESTStore) GetReadingCounts(ctx context.Context) (counts map[string]int64, err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QueryReadingCounts, start, err) }(time.Now())

	counts = make(map[string]int64)
	for offset := 0; ; offset += restPageSize {
		query := url.Values{}
		query.Set("select", "node_id")
		query.Set("order", "id.asc")
		query.Set("limit", strconv.Itoa(restPageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page []struct {
			NodeID string `json:"node_id"`
		}
		if _, err := s.get(ctx, "readings", query, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page {
			counts[r.NodeID]++
		}
		if len(page) < restPageSize {
			return counts, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// SaveNode upserts node on its id.
func (s *RESTStore) SaveNode(ctx context.Context, node *Node) (err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QuerySaveNode, start, err) }(time.Now())

	query := url.Values{}
	query.Set("on_conflict", "id")
	header := http.Header{}
	header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	body := map[string]any{"id": node.ID, "referred_by": node.ReferredBy}
	return s.post(ctx, "nodes", query, header, []map[string]any{body})
}

// SaveReading appends a reading. The server assigns the id.
func (s *RESTStore) SaveReading(ctx context.Context, reading *Reading) (err error) {
	defer func(start time.Time) { err = observe(s.metrics, conf.BackendREST, QuerySaveReading, start, err) }(time.Now())

	header := http.Header{}
	header.Set("Prefer", "return=minimal")

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	body := map[string]any{
		"node_id":      reading.NodeID,
		"location":     reading.Location,
		"pressure_hpa": reading.PressureHpa,
		"decibel_db":   reading.DecibelDB,
		"timestamp":    ts.UTC().Format(time.RFC3339Nano),
	}
	return s.post(ctx, "readings", nil, header, body)
}
