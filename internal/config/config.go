package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// DefaultSeparator joins retrieved passages into the prompt context.
const DefaultSeparator = "\n -----------  \n"

// Config holds the kongrag configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Ingest    IngestConfig    `yaml:"ingest"`
	RAG       RAGConfig       `yaml:"rag"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // sqlite, redis, valkey (default: sqlite)
	Path             string   `yaml:"path"`   // sqlite file
	Addrs            []string `yaml:"addrs"`  // redis, valkey
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StoreConfig names the chunk table.
type StoreConfig struct {
	Table     string `yaml:"table"`
	KeyPrefix string `yaml:"key_prefix"`
}

// OpenAIConfig holds credentials for the OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ChatConfig holds chat model settings. A nil Temperature keeps the model default.
type ChatConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	TimeoutSec  int      `yaml:"timeout_sec"`
}

// RetryConfig holds backoff settings for retryable service errors.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"` // 1 disables retries
	InitialIntervalMS int `yaml:"initial_interval_ms"`
	MaxIntervalMS     int `yaml:"max_interval_ms"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	ConsecutiveFailures int `yaml:"consecutive_failures"` // 0 disables the breaker
	OpenTimeoutSec      int `yaml:"open_timeout_sec"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Source            string  `yaml:"source"`
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	CheckpointDir     string  `yaml:"checkpoint_dir"`      // empty = no checkpoint
}

// RAGConfig holds retrieval settings.
type RAGConfig struct {
	TopK      int    `yaml:"top_k"`
	Separator string `yaml:"separator"`
}

// ToolsConfig holds tool settings.
type ToolsConfig struct {
	USDCNYRate float64 `yaml:"usd_cny_rate"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	// unset ${VAR} entries expand to empty keys
	c.Auth.APIKeys = slices.DeleteFunc(c.Auth.APIKeys, func(k string) bool { return strings.TrimSpace(k) == "" })
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "db/kongrag.sqlite"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Store.Table == "" {
		c.Store.Table = domain.DefaultTableSchema().Name
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "kongrag:"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = domain.DefaultEmbeddingDimensions
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-3.5-turbo"
	}
	if c.Chat.TimeoutSec <= 0 {
		c.Chat.TimeoutSec = 60
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialIntervalMS <= 0 {
		c.Retry.InitialIntervalMS = 500
	}
	if c.Retry.MaxIntervalMS <= 0 {
		c.Retry.MaxIntervalMS = 5000
	}
	if c.Breaker.OpenTimeoutSec <= 0 {
		c.Breaker.OpenTimeoutSec = 30
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 500
		if c.Ingest.ChunkOverlap == 0 {
			c.Ingest.ChunkOverlap = 100
		}
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 4
	}
	if c.RAG.Separator == "" {
		c.RAG.Separator = DefaultSeparator
	}
	if c.Tools.USDCNYRate == 0 {
		c.Tools.USDCNYRate = 7.12
	}
}

// Validate checks the configuration for correctness.
// Every error wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return invalid("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return invalid("database.path is required for driver %q", c.Database.Driver)
		}
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return invalid("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return invalid("database.driver must be one of %q, %q, %q, got %q",
			DriverSQLite, DriverRedis, DriverValkey, c.Database.Driver)
	}
	if err := c.TableSchema().Validate(); err != nil {
		return fmt.Errorf("store/embedding: %w", err)
	}
	if c.Ingest.ChunkSize <= 0 {
		return invalid("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return invalid("ingest.chunk_overlap must be in [0, %d), got %d", c.Ingest.ChunkSize, c.Ingest.ChunkOverlap)
	}
	if c.Ingest.RequestsPerSecond < 0 {
		return invalid("ingest.requests_per_second must not be negative, got %g", c.Ingest.RequestsPerSecond)
	}
	if c.RAG.TopK <= 0 {
		return invalid("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.Chat.Temperature != nil && (*c.Chat.Temperature < 0 || *c.Chat.Temperature > 2) {
		return invalid("chat.temperature must be in [0, 2], got %g", *c.Chat.Temperature)
	}
	if c.Tools.USDCNYRate <= 0 {
		return invalid("tools.usd_cny_rate must be positive, got %g", c.Tools.USDCNYRate)
	}
	return nil
}

// TableSchema returns the chunk table schema described by the config.
func (c *Config) TableSchema() domain.TableSchema {
	return domain.TableSchema{Name: c.Store.Table, Dimensions: c.Embedding.Dimensions}
}

// EmbeddingTimeout returns the per-call embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSec) * time.Second
}

// ChatTimeout returns the per-call chat timeout.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Chat.TimeoutSec) * time.Second
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrConfiguration)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
