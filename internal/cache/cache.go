// Package cache reads block-volume rows from the local DuckDB store.
//
// The store is populated by an external ingestion process; this package
// only ever reads it. The connection is owned by the process root and
// injected here, so tests can substitute an in-memory database.
package cache

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/blockvol/internal/errors"
	"github.com/xtxerr/blockvol/internal/types"
)

// Reader provides read-only access to the transactions table. Safe for
// concurrent use.
type Reader struct {
	mu sync.RWMutex

	db *sql.DB

	// Statistics, guarded by mu.
	stats Stats
}

// Stats holds read statistics.
type Stats struct {
	ReadsExecuted int64 `json:"readsExecuted"`
	RowsReturned  int64 `json:"rowsReturned"`
	Errors        int64 `json:"errors"`
}

// Open opens the DuckDB database at path and ensures the transactions
// table exists. An empty path opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}

	// The ingester normally creates this; creating it here keeps a fresh
	// deployment readable (as empty) instead of erroring on every request.
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS transactions (
		block_id   BIGINT,
		volume     BIGINT,
		created_at VARCHAR
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create transactions table")
	}

	return db, nil
}

// New creates a Reader over an already-open database handle.
func New(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// ReadRows returns raw rows for the range, ascending by block_id. A bounded
// range restricts to block_id in [start, end] inclusive; an unbounded range
// returns the oldest DefaultWindow rows instead of the whole table.
// Any storage-layer failure is surfaced as ErrCacheUnavailable.
func (r *Reader) ReadRows(ctx context.Context, rng types.Range) ([]types.Row, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if rng.Bounded {
		rows, err = r.db.QueryContext(ctx, `
			SELECT block_id, volume, created_at
			FROM transactions
			WHERE block_id BETWEEN ? AND ?
			ORDER BY block_id`,
			rng.Start, rng.End)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT block_id, volume, created_at
			FROM transactions
			ORDER BY block_id
			LIMIT ?`,
			types.DefaultWindow)
	}
	if err != nil {
		r.countError()
		return nil, errors.NewCacheUnavailable(err)
	}
	defer rows.Close()

	var out []types.Row
	for rows.Next() {
		var (
			row    types.Row
			volume sql.NullInt64
		)
		if err := rows.Scan(&row.BlockID, &volume, &row.CreatedAt); err != nil {
			r.countError()
			return nil, errors.NewCacheUnavailable(err)
		}
		if volume.Valid {
			row.Volume = volume.Int64
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		r.countError()
		return nil, errors.NewCacheUnavailable(err)
	}

	r.mu.Lock()
	r.stats.ReadsExecuted++
	r.stats.RowsReturned += int64(len(out))
	r.mu.Unlock()

	return out, nil
}

// Read returns the samples for the range, ascending by block_id. Rows whose
// created_at does not parse are storage corruption and surface as
// ErrCacheUnavailable like any other storage fault.
func (r *Reader) Read(ctx context.Context, rng types.Range) ([]types.Sample, error) {
	rows, err := r.ReadRows(ctx, rng)
	if err != nil {
		return nil, err
	}

	samples := make([]types.Sample, 0, len(rows))
	for _, row := range rows {
		s, err := types.RowToSample(row)
		if err != nil {
			return nil, errors.NewCacheUnavailable(err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func (r *Reader) countError() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

// Stats returns read statistics.
func (r *Reader) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
