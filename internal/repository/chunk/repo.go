// Package chunk stores chunk records in a Redis/Valkey FT index.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/kongrag/internal/db"
	"github.com/kailas-cloud/kongrag/internal/domain"
)

// store is the consumer interface for chunk tables (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the vector store contract of usecase/ingest and usecase/rag.
// Each table is an FT index over hashes <prefix><table>:row:<uuid>; the schema
// signature lives at <prefix><table>:schema.
type Repo struct {
	store  store
	prefix string
	newID  func() string

	mu   sync.RWMutex
	dims map[string]int
}

// New creates a chunk repository. keyPrefix namespaces every key ("kongrag:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{
		store:  s,
		prefix: keyPrefix,
		newID:  uuid.NewString,
		dims:   make(map[string]int),
	}
}

// EnsureTable creates the table index if absent. An existing table whose stored
// signature differs from schema fails with domain.ErrSchemaMismatch.
func (r *Repo) EnsureTable(ctx context.Context, schema domain.TableSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	name := schema.Name
	want := schema.Signature()

	stored, err := r.store.Get(ctx, r.schemaKey(name))
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		stored = nil
	case err != nil:
		return fmt.Errorf("get schema %s: %w", name, err)
	}
	if stored != nil && string(stored) != want {
		return fmt.Errorf("table %s has %q, want %q: %w", name, stored, want, domain.ErrSchemaMismatch)
	}

	exists, err := r.store.IndexExists(ctx, r.indexName(name))
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		def, err := r.buildIndex(schema)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		// a concurrent EnsureTable may have won the race
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}

	if stored == nil {
		if err := r.store.Set(ctx, r.schemaKey(name), []byte(want)); err != nil {
			return fmt.Errorf("set schema %s: %w", name, err)
		}
	}

	r.mu.Lock()
	r.dims[name] = schema.Dimensions
	r.mu.Unlock()
	return nil
}

// Append stores rec as a new row. Rows are never deduplicated.
func (r *Repo) Append(ctx context.Context, table string, rec domain.Record) error {
	dim, err := r.dimension(ctx, table)
	if err != nil {
		return err
	}
	if len(rec.Vector) != dim {
		return fmt.Errorf("table %s: vector has %d dimensions, want %d: %w",
			table, len(rec.Vector), dim, domain.ErrInvalidInput)
	}

	key := r.rowPrefix(table) + r.newID()
	if err := r.store.HSet(ctx, key, recordToHash(rec)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// NearestNeighbors returns up to k records by ascending cosine distance to vector.
func (r *Repo) NearestNeighbors(
	ctx context.Context, table string, vector []float32, k int,
) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty: %w", domain.ErrInvalidInput)
	}
	dim, err := r.dimension(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("table %s: query has %d dimensions, want %d: %w",
			table, len(vector), dim, domain.ErrInvalidInput)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(table),
		VectorField:  domain.FieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: domain.Fields,
		RawScores:    true,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("knn search %s: %w", table, err)
	}

	out := make([]domain.Neighbor, 0, len(res.Entries))
	for _, e := range res.Entries {
		rec, err := recordFromHash(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse row %s: %w", e.Key, err)
		}
		out = append(out, domain.Neighbor{Record: rec, Distance: e.Score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns the number of rows in table.
func (r *Repo) Count(ctx context.Context, table string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(table), "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Drop removes the table index, every row hash and the schema key.
// A table with neither index nor schema fails with domain.ErrNotFound.
func (r *Repo) Drop(ctx context.Context, table string) error {
	if !domain.IsValidIdentifier(table) {
		return fmt.Errorf("table name %q: %w", table, domain.ErrInvalidInput)
	}
	hasSchema, err := r.store.Exists(ctx, r.schemaKey(table))
	if err != nil {
		return fmt.Errorf("check schema %s: %w", table, err)
	}

	err = r.store.DropIndex(ctx, r.indexName(table))
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		if !hasSchema {
			return fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
		}
	case err != nil:
		return fmt.Errorf("drop index %s: %w", table, err)
	}

	keys, err := r.store.Scan(ctx, r.rowPrefix(table)+"*")
	if err != nil {
		return fmt.Errorf("scan rows %s: %w", table, err)
	}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("del %s: %w", key, err)
		}
	}
	if err := r.store.Del(ctx, r.schemaKey(table)); err != nil {
		return fmt.Errorf("del schema %s: %w", table, err)
	}

	r.mu.Lock()
	delete(r.dims, table)
	r.mu.Unlock()
	return nil
}

// dimension returns the vector length of table, reading the stored signature
// when EnsureTable has not run in this process.
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

	sig, err := r.store.Get(ctx, r.schemaKey(table))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get schema %s: %w", table, err)
	}
	dim, err = parseDimension(string(sig))
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", table, err)
	}

	r.mu.Lock()
	r.dims[table] = dim
	r.mu.Unlock()
	return dim, nil
}

func (r *Repo) buildIndex(schema domain.TableSchema) (*db.IndexDefinition, error) {
	return db.NewIndex(r.indexName(schema.Name)).
		Prefix(r.rowPrefix(schema.Name)).
		Numeric(domain.FieldIndex, domain.FieldLinesFrom, domain.FieldLinesTo).
		StoredText(domain.FieldContent).
		Vector(domain.FieldVector, schema.Dimensions, db.VectorFlat, db.DistanceCosine).
		Build()
}

func (r *Repo) indexName(table string) string { return r.prefix + table + ":idx" }
func (r *Repo) rowPrefix(table string) string { return r.prefix + table + ":row:" }
func (r *Repo) schemaKey(table string) string { return r.prefix + table + ":schema" }

func parseDimension(signature string) (int, error) {
	_, dim, ok := strings.Cut(signature, ";dim=")
	if !ok {
		return 0, fmt.Errorf("malformed schema signature %q: %w", signature, domain.ErrSchemaMismatch)
	}
	n, err := strconv.Atoi(dim)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("malformed schema signature %q: %w", signature, domain.ErrSchemaMismatch)
	}
	return n, nil
}
