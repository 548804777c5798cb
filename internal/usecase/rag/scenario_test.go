package rag_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/repository/chunksql"
	"github.com/kailas-cloud/kongrag/internal/transport/openai"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

// keywordVector embeds text by counting a few keywords, so nearest neighbors are predictable.
func keywordVector(text string) []float32 {
	return []float32{
		float32(strings.Count(text, "酒")),
		float32(strings.Count(text, "书")),
		float32(strings.Count(text, "钱")),
		0.1,
	}
}

// fakeOpenAI serves /embeddings and /chat/completions and records the chat message count.
func fakeOpenAI(t *testing.T, chatMessages *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) != 1 {
				t.Errorf("bad embedding request: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": keywordVector(req.Input[0])}},
				"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
			})
		case "/chat/completions":
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			chatMessages.Store(int32(len(req.Messages)))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "x",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "“温两碗酒，要一碟茴香豆。”"},
					"finish_reason": "stop",
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAsk_EndToEnd(t *testing.T) {
	ctx := context.Background()
	var chatMessages atomic.Int32
	server := fakeOpenAI(t, &chatMessages)

	conn, err := chunksql.Open(filepath.Join(t.TempDir(), "kongrag.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := chunksql.New(conn)
	schema := domain.TableSchema{Name: "kong", Dimensions: 4}
	if err := store.EnsureTable(ctx, schema); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	passages := []string{
		"孔乙己一到店，所有喝酒的人便都看着他笑",
		"温两碗酒，要一碟茴香豆。便排出九文大钱",
		"读过书，便考你一考",
		"窃书不能算偷……读书人的事，能算偷么？",
		"他便排出九文大钱",
		"这一回是现钱，酒要好",
	}
	for i, p := range passages {
		rec := domain.Record{Index: i, Vector: keywordVector(p), LinesFrom: i + 1, LinesTo: i + 1, Content: p}
		if err := store.Append(ctx, schema.Name, rec); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	embedder := openai.NewEmbedder(&openai.Config{
		APIKey: "k", BaseURL: server.URL, Model: "text-embedding-ada-002", Dimensions: 4, Logger: zap.NewNop(),
	})
	model := openai.NewChatModel(&openai.ChatConfig{
		APIKey: "k", BaseURL: server.URL, Model: "gpt-3.5-turbo", Temperature: domain.Temperature(0),
	})
	svc := rag.New(store, embedder, model, rag.Config{Table: schema.Name}, zap.NewNop())

	const question = "孔乙己喝酒的时候付了多少钱？"
	sources, err := svc.Retrieve(ctx, question)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(sources) == 0 || len(sources) > rag.DefaultTopK {
		t.Fatalf("expected 1..%d records, got %d", rag.DefaultTopK, len(sources))
	}
	for i := 1; i < len(sources); i++ {
		if sources[i].Distance < sources[i-1].Distance {
			t.Fatalf("distances not ascending at %d: %v", i, sources)
		}
	}
	if sources[0].Record.Index != 1 {
		t.Errorf("expected passage 1 to rank first, got %d (%q)", sources[0].Record.Index, sources[0].Record.Content)
	}

	ans, err := svc.Ask(ctx, question)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text == "" {
		t.Fatal("expected a non-empty answer")
	}
	if got := chatMessages.Load(); got != 2 {
		t.Fatalf("expected exactly 2 chat messages, got %d", got)
	}
	if n := strings.Count(ans.Context, rag.DefaultSeparator); n != len(ans.Sources)-1 {
		t.Errorf("expected %d separators, got %d", len(ans.Sources)-1, n)
	}
}

func TestRetrieveContext_EmptyTable(t *testing.T) {
	ctx := context.Background()
	var chatMessages atomic.Int32
	server := fakeOpenAI(t, &chatMessages)

	conn, err := chunksql.Open(filepath.Join(t.TempDir(), "kongrag.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := chunksql.New(conn)
	if err := store.EnsureTable(ctx, domain.TableSchema{Name: "kong", Dimensions: 4}); err != nil {
		t.Fatal(err)
	}

	embedder := openai.NewEmbedder(&openai.Config{APIKey: "k", BaseURL: server.URL, Model: "m", Dimensions: 4})
	svc := rag.New(store, embedder, nil, rag.Config{Table: "kong"}, nil)

	got, err := svc.RetrieveContext(ctx, "酒")
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty context, got %q", got)
	}

	_, err = rag.New(store, embedder, nil, rag.Config{Table: "missing"}, nil).RetrieveContext(ctx, "酒")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing table, got %v", err)
	}
}
