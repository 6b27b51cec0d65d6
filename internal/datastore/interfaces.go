// interfaces.go: backend query contracts for the node directory and reading table
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/httpclient"
)

// ErrNotOpen is returned by queries issued before Open or after Close.
var ErrNotOpen = errors.NewStd("datastore not open")

// Interface abstracts the backend holding nodes and readings.
type Interface interface {
	Open() error
	Close() error
	// Backend names the implementation: sqlite, mysql or rest.
	Backend() string

	// GetNodes returns the full node directory.
	GetNodes(ctx context.Context) ([]Node, error)
	// GetReadingCounts returns the number of readings per node id.
	GetReadingCounts(ctx context.Context) (map[string]int64, error)
	// GetRecentReadings returns at most limit readings, newest first.
	GetRecentReadings(ctx context.Context, limit int) ([]Reading, error)
	// CountReadings returns the exact number of readings.
	CountReadings(ctx context.Context) (int64, error)

	// SaveNode inserts a node or updates its inviter.
	SaveNode(ctx context.Context, node *Node) error
	// SaveReading appends a reading.
	SaveReading(ctx context.Context, reading *Reading) error
}

// QueryRecorder receives the latency and outcome of every backend query.
type QueryRecorder interface {
	RecordQuery(backend, query string, elapsed time.Duration, err error)
}

// Query names used for metrics, logs and error context.
const (
	QueryNodes         = "nodes"
	QueryReadingCounts = "reading_counts"
	QueryRecent        = "recent_readings"
	QueryCount         = "count_readings"
	QuerySaveNode      = "save_node"
	QuerySaveReading   = "save_reading"
)

type options struct {
	metrics    QueryRecorder
	httpConfig *httpclient.Config
}

// Option customizes a store built by New.
type Option func(*options)

// WithMetrics records query latency and errors.
func WithMetrics(m QueryRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithHTTPConfig overrides the HTTP client configuration of the rest backend.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(o *options) { o.httpConfig = &cfg }
}

// New creates the store selected by settings.Backend.Type. It does not open it.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch settings.Backend.Type {
	case conf.BackendSQLite:
		return &SQLiteStore{DataStore: DataStore{backend: conf.BackendSQLite, metrics: o.metrics}, Settings: settings}, nil
	case conf.BackendMySQL:
		return &MySQLStore{DataStore: DataStore{backend: conf.BackendMySQL, metrics: o.metrics}, Settings: settings}, nil
	case conf.BackendREST:
		return &RESTStore{Settings: settings, metrics: o.metrics, httpConfig: o.httpConfig}, nil
	default:
		return nil, errors.Newf("unsupported backend type %q", settings.Backend.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// observe records a finished query and wraps a failure as a query error.
func observe(rec QueryRecorder, backend, query string, start time.Time, err error) error {
	if rec != nil {
		rec.RecordQuery(backend, query, time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotOpen) {
		return err
	}
	return errors.New(fmt.Errorf("%s query %s: %w", backend, query, err)).
		Component("datastore").
		Category(errors.CategoryQuery).
		Context("backend", backend).
		Context("operation", query).
		Build()
}
