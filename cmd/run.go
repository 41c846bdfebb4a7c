package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/chat"
	"github.com/monetadev/moneta/internal/config"
	"github.com/monetadev/moneta/internal/generation"
	"github.com/monetadev/moneta/internal/grading"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/pipeline"
	"github.com/monetadev/moneta/internal/store"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// runtime holds everything a pipeline command needs. Close releases it.
type runtime struct {
	cfg     config.Config
	store   *store.Store
	svc     *pipeline.Service
	log     zerolog.Logger
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// userContext returns the command context carrying the acting user.
func (r *runtime) userContext(cmd *cobra.Command) (context.Context, error) {
	id, err := r.cfg.User()
	if err != nil {
		return nil, err
	}
	return auth.WithUser(cmd.Context(), id), nil
}

// openStore opens the SQLite store named by configuration.
func openStore(cmd *cobra.Command) (*store.Store, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	return st, cfg, nil
}

// openRuntime opens the store, builds dependencies and the pipeline. When
// the model provider cannot be built, commands that need it fail on first
// use with the configuration error.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	st, cfg, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, store: st, log: newLogger(cmd, cfg)}
	rt.closers = append(rt.closers, func() { st.Close() })

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			rt.log.Warn().Err(err).Msg("redis unavailable, continuing without embedding cache and chat memory")
			rdb = nil
		} else {
			rt.closers = append(rt.closers, func() { rdb.Close() })
		}
	}

	vectors, err := openVectors(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), rt.log)
	if err != nil {
		rt.log.Debug().Err(err).Msg("model provider not configured")
		provider = unconfiguredProvider{err: err}
	}

	var kv llm.KV
	var memory chat.Memory
	if rdb != nil {
		kv = llm.NewRedisKV(rdb)
		memory = chat.NewRedisMemory(rdb, chat.DefaultMaxMessages)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg.LLM, kv, rt.log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.Splitter = cfg.Splitter
	genCfg := generation.DefaultConfig().ForProvider(cfg.LLM.Provider)
	genCfg.RewriteQuery = cfg.RewriteQuery
	gradeCfg := grading.DefaultConfig()
	gradeCfg.Model = llm.TierModel(cfg.LLM.Provider, llm.TierStrong)

	rt.svc = pipeline.New(pipeline.Deps{
		Provider:   provider,
		Embedder:   embedder,
		Vectors:    vectors,
		Sets:       st.FlashcardSets(),
		Quizzes:    st.Quizzes(),
		Attempts:   st.Attempts(),
		Memory:     memory,
		Ingest:     &ingestCfg,
		Generation: &genCfg,
		Grading:    &gradeCfg,
		Log:        rt.log,
	})
	return rt, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func openVectors(ctx context.Context, rt *runtime) (vectorstore.Store, error) {
	var base vectorstore.Store
	switch rt.cfg.Vector.Backend {
	case config.VectorPGVector:
		pg, pool, err := vectorstore.OpenPGVector(ctx, rt.cfg.Vector.PG)
		if err != nil {
			return nil, fmt.Errorf("open pgvector: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		base = pg
	case config.VectorMemory:
		base = vectorstore.NewMemory()
	default:
		base = rt.store.Vectors()
	}
	return vectorstore.WithRetry(base, rt.cfg.Vector.Retry, rt.log), nil
}

// unconfiguredProvider stands in for a provider whose configuration is
// incomplete.
type unconfiguredProvider struct {
	err error
}

func (p unconfiguredProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return nil, &llm.ErrProviderUnavailable{Err: fmt.Errorf("model provider not configured: %w", p.err)}
}

func (unconfiguredProvider) ModelID() string { return "" }
