// Package sqlsource fetches snapshots with a SQL query.
//
// With a version query (for example "SELECT MAX(updated_at) FROM flags") the
// version is the fingerprint and the main query only runs when it changes.
// Without one, the fingerprint is a hash of the JSON encoding of the scanned
// snapshot.
package sqlsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vango-dev/selector/pkg/source"
)

// ScanFunc builds a snapshot from the result rows. It must not close rows.
type ScanFunc[S any] func(rows *sql.Rows) (S, error)

// Option configures a Fetcher.
type Option func(*config)

type config struct {
	args         []any
	versionQuery string
	versionArgs  []any
}

// WithArgs sets the arguments of the main query.
func WithArgs(args ...any) Option {
	return func(c *config) {
		c.args = args
	}
}

// WithVersionQuery sets a single-value query whose result changes whenever
// the data does.
func WithVersionQuery(query string, args ...any) Option {
	return func(c *config) {
		c.versionQuery = query
		c.versionArgs = args
	}
}

// Fetcher implements source.Fetcher over a *sql.DB.
type Fetcher[S any] struct {
	db    *sql.DB
	query string
	scan  ScanFunc[S]
	cfg   config

	mu      sync.Mutex
	version string
	last    S
	has     bool
}

var _ source.Fetcher[int] = (*Fetcher[int])(nil)

// New creates a Fetcher running query against db.
func New[S any](db *sql.DB, query string, scan ScanFunc[S], opts ...Option) *Fetcher[S] {
	f := &Fetcher[S]{db: db, query: query, scan: scan}
	for _, opt := range opts {
		opt(&f.cfg)
	}
	return f
}

// Fetch implements source.Fetcher.
func (f *Fetcher[S]) Fetch(ctx context.Context) (S, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero S
	version := ""
	if f.cfg.versionQuery != "" {
		var v any
		if err := f.db.QueryRowContext(ctx, f.cfg.versionQuery, f.cfg.versionArgs...).Scan(&v); err != nil {
			return zero, "", fmt.Errorf("version query: %w", err)
		}
		version = formatVersion(v)
		if f.has && version == f.version {
			return f.last, f.version, nil
		}
	}

	rows, err := f.db.QueryContext(ctx, f.query, f.cfg.args...)
	if err != nil {
		return zero, "", fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	snap, err := f.scan(rows)
	if err != nil {
		return zero, "", fmt.Errorf("scan: %w", err)
	}
	if err := rows.Err(); err != nil {
		return zero, "", fmt.Errorf("rows: %w", err)
	}

	if f.cfg.versionQuery == "" {
		data, err := json.Marshal(snap)
		if err != nil {
			return zero, "", fmt.Errorf("fingerprint: %w", err)
		}
		version = source.Fingerprint(data)
	}

	f.version = version
	f.last = snap
	f.has = true
	return snap, version, nil
}

func formatVersion(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
