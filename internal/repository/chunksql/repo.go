// Package chunksql stores chunk records in a local SQLite file and ranks them by brute-force cosine distance.
package chunksql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/kailas-cloud/kongrag/internal/db"
	"github.com/kailas-cloud/kongrag/internal/domain"
)

const registryDDL = `CREATE TABLE IF NOT EXISTS kongrag_tables (
	name       TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL,
	signature  TEXT NOT NULL
)`

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Repo implements the vector store contract of usecase/ingest and usecase/rag on SQLite.
type Repo struct {
	db *sql.DB

	mu   sync.RWMutex
	dims map[string]int
}

// New creates a repository over an open database.
func New(conn *sql.DB) *Repo {
	return &Repo{db: conn, dims: make(map[string]int)}
}

// Ping checks the database file is usable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// EnsureTable creates the table and registers its schema. An existing table
// with a different registered signature or different columns fails with
// domain.ErrSchemaMismatch.
func (r *Repo) EnsureTable(ctx context.Context, schema domain.TableSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	want := schema.Signature()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, registryDDL); err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	var stored string
	err = tx.QueryRowContext(ctx,
		`SELECT signature FROM kongrag_tables WHERE name = ?`, schema.Name).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := checkUnregistered(ctx, tx, schema); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kongrag_tables(name, dimensions, signature) VALUES(?, ?, ?)`,
			schema.Name, schema.Dimensions, want); err != nil {
			return fmt.Errorf("register table %s: %w", schema.Name, err)
		}
	case err != nil:
		return fmt.Errorf("read registry: %w", err)
	case stored != want:
		return fmt.Errorf("table %s has %q, want %q: %w", schema.Name, stored, want, domain.ErrSchemaMismatch)
	}

	if _, err := tx.ExecContext(ctx, createTableDDL(schema.Name)); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.mu.Lock()
	r.dims[schema.Name] = schema.Dimensions
	r.mu.Unlock()
	return nil
}

// Append inserts rec as a new row. Rows are never deduplicated.
func (r *Repo) Append(ctx context.Context, table string, rec domain.Record) error {
	dim, err := r.dimension(ctx, table)
	if err != nil {
		return err
	}
	if len(rec.Vector) != dim {
		return vectorSizeError(table, "vector", len(rec.Vector), dim)
	}

	inserted, err := r.insert(ctx, table, dim, rec)
	switch {
	case err != nil && !isNoSuchTable(err):
		return fmt.Errorf("insert into %s: %w", table, err)
	case err == nil && inserted:
		return nil
	}

	// the cached dimension is stale
	if dim, err = r.refreshDimension(ctx, table); err != nil {
		return err
	}
	if len(rec.Vector) != dim {
		return vectorSizeError(table, "vector", len(rec.Vector), dim)
	}
	if inserted, err = r.insert(ctx, table, dim, rec); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	if !inserted {
		return fmt.Errorf("table %s changed during insert: %w", table, domain.ErrSchemaMismatch)
	}
	return nil
}

// insert writes rec only while the registry still holds table with dim, so a
// table recreated by another process is never written with the old vector size.
func (r *Repo) insert(ctx context.Context, table string, dim int, rec domain.Record) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s(%s) SELECT ?, ?, ?, ?, ?
	WHERE EXISTS (SELECT 1 FROM kongrag_tables WHERE name = ? AND dimensions = ?)`,
		quote(table), columnList())
	res, err := r.db.ExecContext(ctx, query,
		rec.Index, db.EncodeVector(rec.Vector), rec.LinesFrom, rec.LinesTo, rec.Content,
		table, dim,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NearestNeighbors scans table and returns up to k records by ascending cosine
// distance. Ties keep insertion order.
func (r *Repo) NearestNeighbors(
	ctx context.Context, table string, vector []float32, k int,
) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	dim, err := r.dimension(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, vectorSizeError(table, "query", len(vector), dim)
	}

	out, stale, err := r.rank(ctx, table, vector)
	if err != nil {
		return nil, err
	}
	if stale {
		if dim, err = r.refreshDimension(ctx, table); err != nil {
			return nil, err
		}
		if len(vector) != dim {
			return nil, vectorSizeError(table, "query", len(vector), dim)
		}
		if out, stale, err = r.rank(ctx, table, vector); err != nil {
			return nil, err
		}
		if stale {
			return nil, fmt.Errorf("table %s changed during search: %w", table, domain.ErrSchemaMismatch)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// rank scores every row of table against vector in rowid order. stale is true
// when the table is gone or holds vectors of another size.
func (r *Repo) rank(ctx context.Context, table string, vector []float32) (out []domain.Neighbor, stale bool, err error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid`, columnList(), quote(table))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if isNoSuchTable(err) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec  domain.Record
			blob []byte
		)
		if err := rows.Scan(&rec.Index, &blob, &rec.LinesFrom, &rec.LinesTo, &rec.Content); err != nil {
			return nil, false, fmt.Errorf("scan row: %w", err)
		}
		if rec.Vector, err = db.DecodeVector(blob); err != nil {
			return nil, false, fmt.Errorf("row %d: %w", rec.Index, err)
		}
		if len(rec.Vector) != len(vector) {
			return nil, true, nil
		}
		dist, err := db.CosineDistance(vector, rec.Vector)
		if err != nil {
			return nil, false, fmt.Errorf("row %d: %w", rec.Index, err)
		}
		out = append(out, domain.Neighbor{Record: rec, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, false, nil
}

// Count returns the number of rows in table.
func (r *Repo) Count(ctx context.Context, table string) (int, error) {
	if _, err := r.dimension(ctx, table); err != nil {
		return 0, err
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(table)).Scan(&n)
	if err != nil && isNoSuchTable(err) {
		if _, rerr := r.refreshDimension(ctx, table); rerr != nil {
			return 0, rerr
		}
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(table)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Drop removes table and its registry entry. A table that was never
// registered fails with domain.ErrNotFound.
func (r *Repo) Drop(ctx context.Context, table string) error {
	if _, err := r.dimension(ctx, table); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quote(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kongrag_tables WHERE name = ?`, table); err != nil {
		return fmt.Errorf("unregister %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.mu.Lock()
	delete(r.dims, table)
	r.mu.Unlock()
	return nil
}

// dimension returns the registered vector length of table.
func (r *Repo) dimension(ctx context.Context, table string) (int, error) {
	if !domain.IsValidIdentifier(table) {
		return 0, fmt.Errorf("table name %q: %w", table, domain.ErrInvalidInput)
	}

	r.mu.RLock()
	dim, ok := r.dims[table]
	r.mu.RUnlock()
	if ok {
		return dim, nil
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT dimensions FROM kongrag_tables WHERE name = ?`, table).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows), err != nil && isNoSuchTable(err):
		return 0, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	case err != nil:
		return 0, fmt.Errorf("read registry: %w", err)
	}

	r.mu.Lock()
	r.dims[table] = dim
	r.mu.Unlock()
	return dim, nil
}

// refreshDimension forgets the cached dimension of table and reads the registry
// again. Another process may have dropped or recreated the table.
func (r *Repo) refreshDimension(ctx context.Context, table string) (int, error) {
	r.mu.Lock()
	delete(r.dims, table)
	r.mu.Unlock()
	return r.dimension(ctx, table)
}

func vectorSizeError(table, what string, got, want int) error {
	return fmt.Errorf("table %s: %s has %d dimensions, want %d: %w", table, what, got, want, domain.ErrInvalidInput)
}

// checkUnregistered guards against a same-named table created by something
// else: its columns must match and its vectors must have the wanted length.
func checkUnregistered(ctx context.Context, tx *sql.Tx, schema domain.TableSchema) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, schema.Name)
	if err != nil {
		return fmt.Errorf("introspect %s: %w", schema.Name, err)
	}
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return fmt.Errorf("introspect %s: %w", schema.Name, err)
		}
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("introspect %s: %w", schema.Name, err)
	}
	if len(cols) == 0 {
		return nil
	}
	if !slices.Equal(cols, domain.Fields) {
		return fmt.Errorf("table %s has columns %v, want %v: %w",
			schema.Name, cols, domain.Fields, domain.ErrSchemaMismatch)
	}

	var blobLen sql.NullInt64
	query := fmt.Sprintf(`SELECT length(%s) FROM %s LIMIT 1`, quote(domain.FieldVector), quote(schema.Name))
	if err := tx.QueryRowContext(ctx, query).Scan(&blobLen); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("probe %s: %w", schema.Name, err)
	}
	if blobLen.Valid && int(blobLen.Int64) != schema.Dimensions*4 {
		return fmt.Errorf("table %s stores %d-dimensional vectors, want %d: %w",
			schema.Name, blobLen.Int64/4, schema.Dimensions, domain.ErrSchemaMismatch)
	}
	return nil
}

func createTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s INTEGER NOT NULL,
	%s BLOB NOT NULL,
	%s INTEGER NOT NULL,
	%s INTEGER NOT NULL,
	%s TEXT NOT NULL
)`, quote(table),
		quote(domain.FieldIndex), quote(domain.FieldVector),
		quote(domain.FieldLinesFrom), quote(domain.FieldLinesTo), quote(domain.FieldContent))
}

func columnList() string {
	cols := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		cols[i] = quote(f)
	}
	return strings.Join(cols, ", ")
}

// quote makes an identifier safe; names are validated as [a-zA-Z0-9_] before reaching here.
func quote(ident string) string {
	return `"` + ident + `"`
}

func isNoSuchTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
