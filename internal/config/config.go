// Package config loads process configuration from a .env file and MONETA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/vectorstore"
)

// Vector store backends.
const (
	VectorSQLite   = "sqlite"
	VectorPGVector = "pgvector"
	VectorMemory   = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	// DBPath is the SQLite database file. Empty uses the default path.
	DBPath string

	// UserID is the acting user. The CLI refuses user-scoped commands
	// without one.
	UserID string

	LogLevel string

	LLM llm.Config

	Vector   VectorConfig
	Redis    RedisConfig
	Splitter document.Splitter

	// RewriteQuery enables the query rewrite before flashcard retrieval.
	RewriteQuery bool
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	Backend string
	PG      vectorstore.PGConfig
	Retry   vectorstore.RetryConfig
}

// RedisConfig enables the embedding cache and chat memory when URL is set.
type RedisConfig struct {
	URL string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "warn",
		LLM:      llm.DefaultConfig(),
		Vector: VectorConfig{
			Backend: VectorSQLite,
			PG: vectorstore.PGConfig{
				Table:      vectorstore.DefaultTable,
				Dimensions: 1536,
				MaxConns:   4,
			},
			Retry: vectorstore.DefaultRetryConfig(),
		},
		Splitter:     document.DefaultSplitter(),
		RewriteQuery: true,
	}
}

// Load reads the given .env files (default ".env"), then builds the
// configuration from the environment. Missing .env files are ignored;
// variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.LLM = llm.ConfigFromEnv()
	if cfg.LLM.Validate() != nil {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Embedding = cfg.LLM.Embedding
			cfg.LLM = discovered
		}
	}

	cfg.DBPath = os.Getenv("MONETA_DB")
	cfg.UserID = os.Getenv("MONETA_USER_ID")
	cfg.LogLevel = getEnv("MONETA_LOG_LEVEL", cfg.LogLevel)
	cfg.Redis.URL = getEnv("MONETA_REDIS_URL", os.Getenv("REDIS_URL"))

	cfg.Vector.Backend = strings.ToLower(getEnv("MONETA_VECTOR_STORE", cfg.Vector.Backend))
	cfg.Vector.PG.URL = getEnv("MONETA_PGVECTOR_URL", os.Getenv("DATABASE_URL"))
	cfg.Vector.PG.Table = getEnv("MONETA_PGVECTOR_TABLE", cfg.Vector.PG.Table)

	var errs []error
	intVar := func(key string, dst *int) {
		if err := parseInt(key, dst); err != nil {
			errs = append(errs, err)
		}
	}
	intVar("MONETA_EMBEDDING_DIMENSIONS", &cfg.LLM.Embedding.Dimensions)
	cfg.Vector.PG.Dimensions = cfg.LLM.Embedding.Dimensions
	maxConns := int(cfg.Vector.PG.MaxConns)
	intVar("MONETA_PGVECTOR_MAX_CONNS", &maxConns)
	cfg.Vector.PG.MaxConns = int32(maxConns)
	intVar("MONETA_VECTOR_MAX_ATTEMPTS", &cfg.Vector.Retry.MaxAttempts)
	intVar("MONETA_CHUNK_SIZE", &cfg.Splitter.ChunkSize)
	intVar("MONETA_CHUNK_OVERLAP", &cfg.Splitter.Overlap)
	intVar("MONETA_MIN_CHUNK_CHARS", &cfg.Splitter.MinChunkChars)
	intVar("MONETA_MIN_EMBED_LENGTH", &cfg.Splitter.MinEmbedLength)
	intVar("MONETA_MAX_CHUNKS", &cfg.Splitter.MaxChunks)

	if v := os.Getenv("MONETA_VECTOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MONETA_VECTOR_TIMEOUT: %w", err))
		} else {
			cfg.Vector.Retry.Timeout = d
		}
	}
	if v := os.Getenv("MONETA_REWRITE_QUERY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MONETA_REWRITE_QUERY: %w", err))
		} else {
			cfg.RewriteQuery = b
		}
	}

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that can be checked without connecting anywhere.
// The LLM provider is validated separately, since some commands run without
// one.
func (c Config) Validate() error {
	switch c.Vector.Backend {
	case VectorSQLite, VectorMemory:
	case VectorPGVector:
		if c.Vector.PG.URL == "" {
			return errors.New("MONETA_PGVECTOR_URL is required for the pgvector store")
		}
	default:
		return fmt.Errorf("unknown vector store %q", c.Vector.Backend)
	}
	if c.UserID != "" {
		if _, err := uuid.Parse(c.UserID); err != nil {
			return fmt.Errorf("MONETA_USER_ID: %w", err)
		}
	}
	if c.Splitter.ChunkSize < 0 || c.Splitter.Overlap < 0 {
		return errors.New("chunk size and overlap must not be negative")
	}
	if c.Splitter.ChunkSize > 0 && c.Splitter.Overlap >= c.Splitter.ChunkSize {
		return errors.New("chunk overlap must be smaller than chunk size")
	}
	return nil
}

// User parses UserID.
func (c Config) User() (uuid.UUID, error) {
	if c.UserID == "" {
		return uuid.Nil, errors.New("no user configured: set MONETA_USER_ID or pass --user")
	}
	return uuid.Parse(c.UserID)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
