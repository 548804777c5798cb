package kongrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "sqlite", "redis" or "valkey"
	path      string
	addrs     []string
	password  string
	keyPrefix string

	table            string
	vectorDimensions int
	chunkSize        int
	chunkOverlap     int
	topK             int

	openAIKey      string
	openAIBaseURL  string
	embeddingModel string
	chatModelName  string

	embedder  Embedder
	chatModel ChatModel

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite stores chunks in a local SQLite file, created if missing.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = path
	})
}

// WithValkey configures the client to connect to a Valkey instance with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default: "kongrag:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithTable selects the chunk table. Default: "kong".
func WithTable(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.table = name
	})
}

// WithVectorDimensions sets the embedding length of the table.
// Defaults to 1536 (text-embedding-ada-002).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithChunking sets chunk size and overlap in characters. Default: 500 / 100.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many chunks are retrieved per question. Default: 4.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithOpenAI uses an OpenAI-compatible API for embeddings and chat.
// An empty baseURL means https://api.openai.com/v1.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	})
}

// WithModels overrides the OpenAI embedding and chat model names. Empty keeps the default.
func WithModels(embedding, chat string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = embedding
		c.chatModelName = chat
	})
}

// WithEmbedder sets a custom embedding provider. It takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithChatModel sets a custom chat provider. It takes precedence over WithOpenAI.
func WithChatModel(m ChatModel) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatModel = m
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
