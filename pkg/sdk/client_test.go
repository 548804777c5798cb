package kongrag

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

const kong = `孔乙己是站着喝酒而穿长衫的唯一的人。
“温两碗酒，要一碟茴香豆。”便排出九文大钱。
读过书，我便考你一考。
窃书不能算偷……读书人的事，能算偷么？
`

func newSQLiteClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithSQLite(filepath.Join(t.TempDir(), "kongrag.sqlite")),
		WithEmbedder(keywordEmbedder()),
		WithVectorDimensions(4),
		WithChunking(20, 4),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoStore(t *testing.T) {
	_, err := New(context.Background(), WithEmbedder(keywordEmbedder()))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without a store, got %v", err)
	}
}

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithSQLite(filepath.Join(t.TempDir(), "x.sqlite")))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without an embedder, got %v", err)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, err := createStore(context.Background(), cfg)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown driver, got %v", err)
	}
}

func TestNew_InvalidChunking(t *testing.T) {
	_, err := New(context.Background(),
		WithSQLite(filepath.Join(t.TempDir(), "x.sqlite")),
		WithEmbedder(keywordEmbedder()),
		WithChunking(10, 10),
	)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestClient_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	var sent []Message
	chat := &mockChat{fn: func(_ context.Context, messages []Message) (string, error) {
		sent = messages
		return "九文大钱", nil
	}}
	c := newSQLiteClient(t, WithChatModel(chat), WithTopK(2))

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	res, err := c.IngestText(ctx, "kong.txt", kong)
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if res.Stored != res.Chunks || res.RowCount != res.Chunks || res.Table != "kong" {
		t.Fatalf("unexpected ingest result: %+v", res)
	}

	records, err := c.Retrieve(ctx, "喝了几碗酒")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected top 2 records, got %d", len(records))
	}
	if records[0].Distance > records[1].Distance {
		t.Errorf("records not ranked: %+v", records)
	}
	if !strings.Contains(records[0].Content, "酒") {
		t.Errorf("nearest record should mention 酒: %q", records[0].Content)
	}

	answer, err := c.Ask(ctx, "孔乙己付了多少钱？")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "九文大钱" || len(answer.Sources) != 2 {
		t.Errorf("unexpected answer: %+v", answer)
	}
	if len(sent) != 2 || sent[0].Role != "system" || sent[1].Role != "user" {
		t.Fatalf("expected system+user messages, got %+v", sent)
	}
	if !strings.Contains(sent[1].Content, answer.Context) {
		t.Error("user message should carry the retrieved context")
	}

	h := c.Health(ctx)
	if h.Status != "ok" || h.Checks["database"] != "ok" {
		t.Errorf("unexpected health: %+v", h)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := c.Retrieve(ctx, "喝了几碗酒"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Retrieve after Reset: expected ErrNotFound, got %v", err)
	}
}

func TestClient_AskWithoutChatModel(t *testing.T) {
	c := newSQLiteClient(t)
	if _, err := c.IngestText(context.Background(), "kong.txt", kong); err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	_, err := c.Ask(context.Background(), "茴字怎么写？")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestClient_RetrieveBeforeIngest(t *testing.T) {
	c := newSQLiteClient(t)
	_, err := c.Retrieve(context.Background(), "茴字怎么写？")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing table, got %v", err)
	}
}

func TestClient_IngestFileMissing(t *testing.T) {
	c := newSQLiteClient(t)
	_, err := c.IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_UseCaseErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	c := &Client{
		ragSvc: &mockRagUC{
			retrieveFn: func(context.Context, string) ([]domain.Neighbor, error) { return nil, boom },
			askFn:      func(context.Context, string) (rag.Answer, error) { return rag.Answer{}, boom },
		},
	}
	if _, err := c.Retrieve(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("Retrieve: %v", err)
	}
	if _, err := c.Ask(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("Ask: %v", err)
	}
}

func TestClient_IngestFileMapsResult(t *testing.T) {
	var gotSource string
	c := &Client{ingestSvc: &mockIngestUC{runFn: func(_ context.Context, source string) (ingest.Result, error) {
		gotSource = source
		return ingest.Result{Source: source, Table: "kong", Chunks: 3, Stored: 2, Resumed: 1, RowCount: 3}, nil
	}}}
	res, err := c.IngestFile(context.Background(), "data/kong.pdf")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if gotSource != "data/kong.pdf" {
		t.Errorf("source = %q", gotSource)
	}
	if res.Chunks != 3 || res.Stored != 2 || res.Resumed != 1 || res.RowCount != 3 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	adapter := &embedderAdapter{inner: keywordEmbedder()}
	result, err := adapter.Embed(context.Background(), "温酒")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 4 || result.Embedding[0] != 1 || result.TotalTokens != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	down := errors.New("provider down")
	adapter := &embedderAdapter{inner: &mockEmbedder{
		fn: func(context.Context, string) (EmbeddingResult, error) { return EmbeddingResult{}, down },
	}}
	if _, err := adapter.Embed(context.Background(), "hello"); !errors.Is(err, down) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestChatAdapter_ConvertsRoles(t *testing.T) {
	var got []Message
	adapter := &chatAdapter{inner: &mockChat{fn: func(_ context.Context, m []Message) (string, error) {
		got = m
		return "ok", nil
	}}}
	out, err := adapter.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "s"},
		{Role: domain.RoleUser, Content: "u"},
	}, domain.CompletionOptions{})
	if err != nil || out.Text != "ok" {
		t.Fatalf("Complete: %+v %v", out, err)
	}
	if len(got) != 2 || got[0].Role != "system" || got[1].Content != "u" {
		t.Errorf("unexpected messages: %+v", got)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkey("localhost:6379", "secret").apply(cfg)
	if cfg.driver != driverValkey || cfg.addrs[0] != "localhost:6379" || cfg.password != "secret" {
		t.Errorf("valkey option: %+v", cfg)
	}

	WithRedis("localhost:6380", "pass").apply(cfg)
	if cfg.driver != driverRedis {
		t.Errorf("driver = %q, want redis", cfg.driver)
	}

	WithSQLite("db/k.sqlite").apply(cfg)
	if cfg.driver != driverSQLite || cfg.path != "db/k.sqlite" {
		t.Errorf("sqlite option: %+v", cfg)
	}

	WithTable("lu_xun").apply(cfg)
	WithVectorDimensions(768).apply(cfg)
	WithChunking(300, 50).apply(cfg)
	WithTopK(8).apply(cfg)
	WithModels("text-embedding-3-small", "gpt-4o-mini").apply(cfg)
	WithOpenAI("sk-test", "http://localhost:9999/v1").apply(cfg)
	if cfg.table != "lu_xun" || cfg.vectorDimensions != 768 || cfg.chunkSize != 300 ||
		cfg.chunkOverlap != 50 || cfg.topK != 8 {
		t.Errorf("pipeline options: %+v", cfg)
	}
	if cfg.embeddingModel != "text-embedding-3-small" || cfg.chatModelName != "gpt-4o-mini" ||
		cfg.openAIKey != "sk-test" || cfg.openAIBaseURL != "http://localhost:9999/v1" {
		t.Errorf("openai options: %+v", cfg)
	}

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	WithLogger(logger).apply(cfg)
	WithPrometheus(reg).apply(cfg)
	if cfg.logger != logger || cfg.metricsReg != reg {
		t.Error("expected logger and registry to be set")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &clientConfig{}
	cfg.applyDefaults()
	if cfg.table != "kong" || cfg.vectorDimensions != 1536 || cfg.chunkSize != 500 ||
		cfg.chunkOverlap != 100 || cfg.topK != 4 || cfg.keyPrefix != "kongrag:" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{}
	c.Close()
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("retrieve", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("retrieve", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "kongrag_sdk_calls_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 samples (ok, error), got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("kongrag_sdk_calls_total not found")
	}

	// a second client on the same registry reuses the collectors
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second observer: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("ask", time.Now(), nil)
	obs.observe("ask", time.Now(), errors.New("test error"))
}
