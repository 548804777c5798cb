// Package ingest loads a document, chunks it, embeds every chunk and appends it to the vector store.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/domain/chunk"
	"github.com/kailas-cloud/kongrag/internal/loader"
	"github.com/kailas-cloud/kongrag/internal/metrics"
)

// VectorStore is the write side of the chunk table.
type VectorStore interface {
	EnsureTable(ctx context.Context, schema domain.TableSchema) error
	Append(ctx context.Context, table string, rec domain.Record) error
	Count(ctx context.Context, table string) (int, error)
}

// Embedder vectorizes chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Config holds ingestion settings.
type Config struct {
	Schema            domain.TableSchema
	ChunkSize         int
	ChunkOverlap      int
	RequestsPerSecond float64 // 0 = unlimited
	CheckpointDir     string  // empty = no checkpoint
}

// Result summarizes a run.
type Result struct {
	Source   string
	Table    string
	Chunks   int // chunks in the document
	Stored   int // chunks appended by this run
	Resumed  int // chunks skipped because a checkpoint said they were stored
	Tokens   int
	RowCount int // rows in the table after the run
	Duration time.Duration
}

// Service runs ingestion serially, one chunk at a time in document order.
type Service struct {
	store   VectorStore
	embed   Embedder
	chunker *chunk.Chunker
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New validates cfg and creates a Service.
func New(store VectorStore, embed Embedder, cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	c, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must not be negative: %w", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{store: store, embed: embed, chunker: c, cfg: cfg, logger: logger}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return s, nil
}

// Run loads source from disk and ingests it.
func (s *Service) Run(ctx context.Context, source string) (Result, error) {
	doc, err := loader.Load(source)
	if err != nil {
		return Result{}, fmt.Errorf("load document: %w", err)
	}
	return s.Ingest(ctx, doc)
}

// Ingest stores every chunk of doc. Records are appended, so ingesting the same
// document twice doubles its rows unless a checkpoint of an unfinished run exists.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (Result, error) {
	start := time.Now()
	table := s.cfg.Schema.Name
	res := Result{Source: doc.Source, Table: table}

	if err := s.store.EnsureTable(ctx, s.cfg.Schema); err != nil {
		return res, fmt.Errorf("ensure table %s: %w", table, err)
	}

	chunks := s.chunker.Split(doc.Content)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		return res, fmt.Errorf("document %s has no text: %w", doc.Source, domain.ErrInvalidInput)
	}

	cp, err := newCheckpointFile(s.cfg.CheckpointDir, doc.Source, table)
	if err != nil {
		return res, err
	}
	first, err := s.resumeIndex(cp, doc.Source, len(chunks))
	if err != nil {
		return res, err
	}
	res.Resumed = first
	metrics.IngestChunksTotal.WithLabelValues(table, "skipped").Add(float64(first))

	total := len(chunks)
	for i := first; i < total; i++ {
		ch := chunks[i]
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return res, fmt.Errorf("chunk %d: rate limit wait: %w", i, err)
			}
		}

		s.logger.Info("Embedding chunk", zap.Int("n", i+1), zap.Int("total", total))
		emb, err := s.embed.Embed(ctx, ch.Content)
		if err != nil {
			metrics.IngestChunksTotal.WithLabelValues(table, "failed").Inc()
			return res, fmt.Errorf("chunk %d: embed: %w", i, err)
		}

		if err := s.store.Append(ctx, table, domain.NewRecord(ch, emb.Embedding)); err != nil {
			metrics.IngestChunksTotal.WithLabelValues(table, "failed").Inc()
			return res, fmt.Errorf("chunk %d: append: %w", i, err)
		}
		res.Stored++
		res.Tokens += emb.TotalTokens
		metrics.IngestChunksTotal.WithLabelValues(table, "stored").Inc()
		s.logger.Info("Embedded chunk",
			zap.Int("n", i+1),
			zap.Int("total", total),
			zap.Int("lines_from", ch.LinesFrom),
			zap.Int("lines_to", ch.LinesTo),
		)

		if err := cp.save(Checkpoint{Source: doc.Source, Table: table, Total: total, NextIndex: i + 1}); err != nil {
			s.logger.Warn("Failed to save checkpoint", zap.Error(err))
		}
	}

	if err := cp.remove(); err != nil {
		s.logger.Warn("Failed to remove checkpoint", zap.Error(err))
	}

	if res.RowCount, err = s.store.Count(ctx, table); err != nil {
		return res, fmt.Errorf("count %s: %w", table, err)
	}
	res.Duration = time.Since(start)

	s.logger.Info("Ingestion finished",
		zap.String("source", doc.Source),
		zap.String("table", table),
		zap.Int("chunks", res.Chunks),
		zap.Int("stored", res.Stored),
		zap.Int("resumed", res.Resumed),
		zap.Int("rows", res.RowCount),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// resumeIndex returns the first chunk to process. A checkpoint only applies to
// the same source, table and chunk count.
func (s *Service) resumeIndex(cp checkpointFile, source string, total int) (int, error) {
	saved, ok, err := cp.load()
	if err != nil || !ok {
		return 0, err
	}
	if saved.Source != source || saved.Table != s.cfg.Schema.Name || saved.Total != total ||
		saved.NextIndex < 0 || saved.NextIndex > total {
		s.logger.Warn("Ignoring stale checkpoint",
			zap.String("source", saved.Source),
			zap.Int("total", saved.Total),
			zap.Int("next_index", saved.NextIndex),
		)
		return 0, nil
	}
	s.logger.Info("Resuming from checkpoint", zap.Int("next_index", saved.NextIndex), zap.Int("total", total))
	return saved.NextIndex, nil
}
