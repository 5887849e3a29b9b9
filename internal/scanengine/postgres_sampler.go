package scanengine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/scancore/engine/internal/detect"
)

// PostgresSampler implements TableSampler against a tenant-supplied,
// read-only DSN via database/sql + lib/pq, the same driver the
// persistence gateway uses for the engine's own storage — but on its own
// connection pool per DSN, never the gateway's. A DSN's pool is opened on
// first use, reused by later scans of that DSN, and closed by Close.
type PostgresSampler struct {
	pools map[string]*sql.DB
}

func NewPostgresSampler() *PostgresSampler {
	return &PostgresSampler{pools: make(map[string]*sql.DB)}
}

func (s *PostgresSampler) poolFor(dsn string) (*sql.DB, error) {
	if db, ok := s.pools[dsn]; ok {
		return db, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("scanengine: open dsn: %w", err)
	}
	db.SetMaxOpenConns(2)
	s.pools[dsn] = db
	return db, nil
}

func (s *PostgresSampler) ListTables(ctx context.Context, dsn string) ([]string, error) {
	db, err := s.poolFor(dsn)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("scanengine: list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *PostgresSampler) SampleTable(ctx context.Context, dsn, table string, budget int) (detect.TableSample, error) {
	db, err := s.poolFor(dsn)
	if err != nil {
		return detect.TableSample{}, err
	}

	colRows, err := db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return detect.TableSample{}, fmt.Errorf("scanengine: list columns for %s: %w", table, err)
	}
	var columns []string
	for colRows.Next() {
		var c string
		if err := colRows.Scan(&c); err != nil {
			colRows.Close()
			return detect.TableSample{}, err
		}
		columns = append(columns, c)
	}
	colRows.Close()
	if len(columns) == 0 {
		return detect.TableSample{Table: table}, nil
	}

	query := fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, table, budget)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return detect.TableSample{}, fmt.Errorf("scanengine: sample %s: %w", table, err)
	}
	defer rows.Close()

	var sampled [][]string
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return detect.TableSample{}, err
		}
		cells := make([]string, len(columns))
		for i, v := range raw {
			cells[i] = fmt.Sprintf("%v", v)
		}
		sampled = append(sampled, cells)
	}

	return detect.TableSample{Table: table, Columns: columns, Rows: sampled}, rows.Err()
}

func (s *PostgresSampler) Close() error {
	var firstErr error
	for _, db := range s.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ TableSampler = (*PostgresSampler)(nil)
