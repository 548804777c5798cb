package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/config"
	dbRedis "github.com/kailas-cloud/kongrag/internal/db/redis"
	"github.com/kailas-cloud/kongrag/internal/domain"
	chunkrepo "github.com/kailas-cloud/kongrag/internal/repository/chunk"
	"github.com/kailas-cloud/kongrag/internal/repository/chunksql"
	"github.com/kailas-cloud/kongrag/internal/resilience"
	openaiT "github.com/kailas-cloud/kongrag/internal/transport/openai"
	chatuc "github.com/kailas-cloud/kongrag/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/kongrag/internal/usecase/embedding"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

// chunkStore is what every command needs from a vector store backend.
type chunkStore interface {
	EnsureTable(ctx context.Context, schema domain.TableSchema) error
	Append(ctx context.Context, table string, rec domain.Record) error
	NearestNeighbors(ctx context.Context, table string, query []float32, k int) ([]domain.Neighbor, error)
	Count(ctx context.Context, table string) (int, error)
	Drop(ctx context.Context, table string) error
}

// pinger reports backend connectivity to the health service.
type pinger interface {
	Ping(ctx context.Context) error
}

// storeHandle bundles a chunk repository with its connection lifecycle.
type storeHandle struct {
	chunkStore
	pinger pinger
	close  func()
}

func (h *storeHandle) Ping(ctx context.Context) error { return h.pinger.Ping(ctx) }

func (h *storeHandle) Close() { h.close() }

// openStore connects the configured backend. Redis and Valkey share the rueidis store.
func (c *cli) openStore(ctx context.Context) (*storeHandle, error) {
	dbCfg := c.cfg.Database
	switch dbCfg.Driver {
	case config.DriverSQLite:
		conn, err := chunksql.Open(dbCfg.Path)
		if err != nil {
			return nil, err
		}
		repo := chunksql.New(conn)
		c.logger.Debug("Opened SQLite store", zap.String("path", dbCfg.Path))
		return &storeHandle{chunkStore: repo, pinger: repo, close: func() { _ = repo.Close() }}, nil

	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    dbCfg.Addrs,
			Password: dbCfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", dbCfg.Driver, err)
		}
		timeout := time.Duration(dbCfg.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", dbCfg.Driver, err)
		}
		c.logger.Info("Connected to database",
			zap.String("driver", dbCfg.Driver),
			zap.Strings("addrs", dbCfg.Addrs),
		)
		repo := chunkrepo.New(store, c.cfg.Store.KeyPrefix)
		return &storeHandle{chunkStore: repo, pinger: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q: %w", dbCfg.Driver, domain.ErrConfiguration)
	}
}

func (c *cli) retryPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:     c.cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(c.cfg.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.cfg.Retry.MaxIntervalMS) * time.Millisecond,
		Logger:          c.logger,
	}
}

func (c *cli) breaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerSettings{
		Name:                name,
		ConsecutiveFailures: c.cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         time.Duration(c.cfg.Breaker.OpenTimeoutSec) * time.Second,
		Logger:              c.logger,
	})
}

// newEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Resilient.
func (c *cli) newEmbedder() *embeddinguc.ResilientEmbedder {
	base := openaiT.NewEmbedder(&openaiT.Config{
		APIKey:     c.cfg.OpenAI.APIKey,
		BaseURL:    c.cfg.OpenAI.BaseURL,
		Model:      c.cfg.Embedding.Model,
		Dimensions: c.cfg.Embedding.Dimensions,
		Provider:   openaiT.DefaultProvider,
		Timeout:    c.cfg.EmbeddingTimeout(),
		Logger:     c.logger,
	})
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, openaiT.DefaultProvider, c.cfg.Embedding.Model, c.logger,
	)
	return embeddinguc.NewResilientEmbedder(instrumented, c.retryPolicy(), c.breaker("embedding"))
}

// newChatModel assembles OpenAI -> Resilient. Chat metrics live in the transport.
func (c *cli) newChatModel() *chatuc.ResilientModel {
	base := openaiT.NewChatModel(&openaiT.ChatConfig{
		APIKey:      c.cfg.OpenAI.APIKey,
		BaseURL:     c.cfg.OpenAI.BaseURL,
		Model:       c.cfg.Chat.Model,
		Temperature: c.cfg.Chat.Temperature,
		Provider:    openaiT.DefaultProvider,
		Timeout:     c.cfg.ChatTimeout(),
		Logger:      c.logger,
	})
	return chatuc.NewResilientModel(base, c.retryPolicy(), c.breaker("chat"))
}

// newRAG builds the query pipeline. A nil model gives a retrieval-only service.
func (c *cli) newRAG(store chunkStore, embed rag.Embedder, model domain.ChatModel) *rag.Service {
	return rag.New(store, embed, model, rag.Config{
		Table:     c.cfg.Store.Table,
		TopK:      c.cfg.RAG.TopK,
		Separator: c.cfg.RAG.Separator,
	}, c.logger)
}
