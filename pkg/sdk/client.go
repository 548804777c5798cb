package kongrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/kongrag/internal/db/redis"
	"github.com/kailas-cloud/kongrag/internal/domain"
	chunkrepo "github.com/kailas-cloud/kongrag/internal/repository/chunk"
	"github.com/kailas-cloud/kongrag/internal/repository/chunksql"
	"github.com/kailas-cloud/kongrag/internal/resilience"
	openaiT "github.com/kailas-cloud/kongrag/internal/transport/openai"
	chatuc "github.com/kailas-cloud/kongrag/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/kongrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/kongrag/internal/usecase/health"
	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

const (
	driverSQLite = "sqlite"
	driverRedis  = "redis"
	driverValkey = "valkey"

	defaultReadinessTimeout = 10 * time.Second
	defaultEmbeddingModel   = "text-embedding-ada-002"
	defaultChatModel        = "gpt-3.5-turbo"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultKeyPrefix        = "kongrag:"
)

// Internal interfaces, swapped for fakes in tests.
type ingestUseCase interface {
	Run(ctx context.Context, source string) (ingest.Result, error)
	Ingest(ctx context.Context, doc domain.Document) (ingest.Result, error)
}

type ragUseCase interface {
	Retrieve(ctx context.Context, question string) ([]domain.Neighbor, error)
	Ask(ctx context.Context, question string) (rag.Answer, error)
}

type vectorStore interface {
	ingest.VectorStore
	rag.VectorStore
	Drop(ctx context.Context, table string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// openedStore is a vector store with its connection lifecycle.
type openedStore struct {
	repo   vectorStore
	pinger pinger
	close  func()
}

// Client is the kongrag SDK entry point.
type Client struct {
	store     *openedStore
	ingestSvc ingestUseCase
	ragSvc    ragUseCase
	healthSvc healthUseCase
	obs       *observer
	table     string
}

// New creates a Client and connects to the vector store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	cfg.applyDefaults()

	if cfg.driver == "" {
		return nil, fmt.Errorf("kongrag: vector store required (use WithSQLite, WithRedis or WithValkey): %w",
			domain.ErrConfiguration)
	}
	if cfg.embedder == nil && cfg.openAIKey == "" {
		return nil, fmt.Errorf("kongrag: embedder required (use WithOpenAI or WithEmbedder): %w",
			domain.ErrConfiguration)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) applyDefaults() {
	if cfg.table == "" {
		cfg.table = domain.DefaultTableSchema().Name
	}
	if cfg.vectorDimensions == 0 {
		cfg.vectorDimensions = domain.DefaultEmbeddingDimensions
	}
	if cfg.chunkSize == 0 {
		cfg.chunkSize, cfg.chunkOverlap = 500, 100
	}
	if cfg.topK == 0 {
		cfg.topK = rag.DefaultTopK
	}
	if cfg.keyPrefix == "" {
		cfg.keyPrefix = defaultKeyPrefix
	}
	if cfg.openAIBaseURL == "" {
		cfg.openAIBaseURL = defaultOpenAIBaseURL
	}
	if cfg.embeddingModel == "" {
		cfg.embeddingModel = defaultEmbeddingModel
	}
	if cfg.chatModelName == "" {
		cfg.chatModelName = defaultChatModel
	}
}

func createStore(ctx context.Context, cfg *clientConfig) (*openedStore, error) {
	switch cfg.driver {
	case driverSQLite:
		conn, err := chunksql.Open(cfg.path)
		if err != nil {
			return nil, fmt.Errorf("kongrag: %w", err)
		}
		repo := chunksql.New(conn)
		return &openedStore{repo: repo, pinger: repo, close: func() { _ = repo.Close() }}, nil
	case driverRedis, driverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("kongrag: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("kongrag: database not ready: %w", err)
		}
		return &openedStore{repo: chunkrepo.New(s, cfg.keyPrefix), pinger: s, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("kongrag: unknown driver %q: %w", cfg.driver, domain.ErrConfiguration)
	}
}

func wireClient(store *openedStore, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()

	var embedder rag.Embedder
	var embedChecker healthuc.ModelChecker
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	} else {
		base := openaiT.NewEmbedder(&openaiT.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.vectorDimensions,
			Timeout:    30 * time.Second,
			Logger:     logger,
		})
		resilient := embeddinguc.NewResilientEmbedder(base, resilience.DefaultPolicy(), nil)
		embedder, embedChecker = resilient, resilient
	}

	// A nil model leaves the client retrieval-only.
	var model domain.ChatModel
	var chatChecker healthuc.ModelChecker
	switch {
	case cfg.chatModel != nil:
		model = &chatAdapter{inner: cfg.chatModel}
	case cfg.openAIKey != "":
		base := openaiT.NewChatModel(&openaiT.ChatConfig{
			APIKey:      cfg.openAIKey,
			BaseURL:     cfg.openAIBaseURL,
			Model:       cfg.chatModelName,
			Temperature: domain.Temperature(0),
			Timeout:     60 * time.Second,
			Logger:      logger,
		})
		resilient := chatuc.NewResilientModel(base, resilience.DefaultPolicy(), nil)
		model, chatChecker = resilient, resilient
	}

	ingestSvc, err := ingest.New(store.repo, embedder, ingest.Config{
		Schema:       domain.TableSchema{Name: cfg.table, Dimensions: cfg.vectorDimensions},
		ChunkSize:    cfg.chunkSize,
		ChunkOverlap: cfg.chunkOverlap,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kongrag: %w", err)
	}
	ragSvc := rag.New(store.repo, embedder, model, rag.Config{Table: cfg.table, TopK: cfg.topK}, logger)

	return &Client{
		store:     store,
		ingestSvc: ingestSvc,
		ragSvc:    ragSvc,
		healthSvc: healthuc.New(store.pinger, embedChecker, chatChecker),
		obs:       obs,
		table:     cfg.table,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil && c.store.close != nil {
		c.store.close()
	}
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return errors.New("kongrag: client is not connected")
	}
	if err = c.store.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Reset drops the table with all its rows. The next ingest recreates it.
func (c *Client) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset", start, err) }()

	if c.store == nil {
		return errors.New("kongrag: client is not connected")
	}
	return c.store.repo.Drop(ctx, c.table)
}

// IngestFile loads a text or PDF file and appends its chunks to the table.
func (c *Client) IngestFile(ctx context.Context, path string) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest.file", start, err) }()

	r, err := c.ingestSvc.Run(ctx, path)
	if err != nil {
		return IngestResult{}, err
	}
	return ingestResultFrom(r), nil
}

// IngestText appends the chunks of text. source names the document in results and logs.
func (c *Client) IngestText(ctx context.Context, source, text string) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest.text", start, err) }()

	r, err := c.ingestSvc.Ingest(ctx, domain.Document{Source: source, Content: text})
	if err != nil {
		return IngestResult{}, err
	}
	return ingestResultFrom(r), nil
}

// Retrieve returns the chunks nearest to question, closest first.
func (c *Client) Retrieve(ctx context.Context, question string) (records []Record, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	neighbors, err := c.ragSvc.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	return recordsFromNeighbors(neighbors), nil
}

// Ask answers question from the retrieved chunks.
// Without a chat model it fails with ErrConfiguration.
func (c *Client) Ask(ctx context.Context, question string) (answer Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	a, err := c.ragSvc.Ask(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: a.Text, Context: a.Context, Sources: recordsFromNeighbors(a.Sources)}, nil
}
