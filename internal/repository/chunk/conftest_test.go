package chunk

import (
	"context"
	"strings"

	"github.com/kailas-cloud/kongrag/internal/db"
)

// fakeStore is an in-memory stand-in for the FT-enabled store.
// Function fields override the default behavior.
type fakeStore struct {
	kv      map[string][]byte
	hashes  map[string]map[string]string
	indexes map[string]*db.IndexDefinition

	getFn         func(ctx context.Context, key string) ([]byte, error)
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)

	createIndexCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:      make(map[string][]byte),
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getFn != nil {
		return f.getFn(ctx, key)
	}
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.kv[key] = value
	return nil
}

func (f *fakeStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if f.hsetFn != nil {
		return f.hsetFn(ctx, key, fields)
	}
	f.hashes[key] = fields
	return nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	delete(f.kv, key)
	delete(f.hashes, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, inKV := f.kv[key]
	_, inHash := f.hashes[key]
	return inKV || inHash, nil
}

// Scan supports only trailing-"*" patterns.
func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range f.hashes {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range f.kv {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	f.createIndexCalls++
	if f.createIndexFn != nil {
		return f.createIndexFn(ctx, def)
	}
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string) error {
	if _, ok := f.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

// SearchKNN scores every hash under the index prefix. Results are returned in
// key order, not score order, like a server that does not sort.
func (f *fakeStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.searchKNNFn != nil {
		return f.searchKNNFn(ctx, q)
	}
	def, ok := f.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}

	type scored struct {
		key  string
		dist float64
	}
	var all []scored
	for key, h := range f.hashes {
		if !strings.HasPrefix(key, def.Prefixes[0]) {
			continue
		}
		v, err := db.DecodeVector([]byte(h[q.VectorField]))
		if err != nil {
			return nil, err
		}
		d, err := db.CosineDistance(q.Vector, v)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{key: key, dist: d})
	}
	// keep the K best, then emit in key order
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[j].dist < all[i].dist {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if len(all) > q.K {
		all = all[:q.K]
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[j].key < all[i].key {
				all[i], all[j] = all[j], all[i]
			}
		}
	}

	res := &db.SearchResult{Total: len(all)}
	for _, s := range all {
		fields := make(map[string]string, len(q.ReturnFields))
		for _, name := range q.ReturnFields {
			fields[name] = f.hashes[s.key][name]
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: s.key, Score: s.dist, Fields: fields})
	}
	return res, nil
}

func (f *fakeStore) SearchCount(_ context.Context, index, _ string) (int, error) {
	def, ok := f.indexes[index]
	if !ok {
		return 0, db.ErrIndexNotFound
	}
	n := 0
	for key := range f.hashes {
		if strings.HasPrefix(key, def.Prefixes[0]) {
			n++
		}
	}
	return n, nil
}
