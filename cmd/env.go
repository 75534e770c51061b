package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/config"
	"github.com/sells-group/beryl/internal/extract"
	"github.com/sells-group/beryl/internal/index"
	"github.com/sells-group/beryl/internal/pipeline"
	"github.com/sells-group/beryl/internal/resilience"
	"github.com/sells-group/beryl/internal/segment"
	"github.com/sells-group/beryl/internal/store"
	anthropicpkg "github.com/sells-group/beryl/pkg/anthropic"
	openaipkg "github.com/sells-group/beryl/pkg/openai"
)

// appEnv holds the clients shared by every coordinator the run and serve
// commands build.
type appEnv struct {
	Store     store.Store // nil when store.driver is none
	Segmenter *segment.Segmenter
	Embedder  index.Embedder
	Generator extract.Generator
	Pause     time.Duration
	Options   pipeline.Options
	BatchSize int
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// newCoordinator builds a coordinator with its own index and pacer.
func (e *appEnv) newCoordinator(obs pipeline.Observer) *pipeline.Coordinator {
	return pipeline.New(pipeline.Deps{
		Segmenter: e.Segmenter,
		Index:     index.New(e.Embedder, index.Options{BatchSize: e.BatchSize}),
		Generator: e.Generator,
		Store:     e.Store,
		Pacer:     pipeline.NewIntervalPacer(e.Pause),
		Observer:  obs,
	}, e.Options)
}

// initEnv validates cfg for mode and wires the store, embedder and
// generator. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	seg, err := segment.New(segment.Config{
		WindowWords:  c.Segment.WindowWords,
		OverlapWords: c.Segment.OverlapWords,
	})
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	env := &appEnv{
		Store:     st,
		Segmenter: seg,
		Embedder:  initEmbedder(c),
		Generator: initGenerator(c),
		Pause:     time.Duration(c.Analysis.EntityPauseMs) * time.Millisecond,
		Options: pipeline.Options{
			DiscoveryTopK: c.Analysis.DiscoveryTopK,
			Analyzer: extract.AnalyzerOptions{
				TopK:            c.Analysis.EntityTopK,
				EnforceEvidence: c.Analysis.EnforceEvidence,
			},
		},
		BatchSize: c.Embedding.BatchSize,
	}

	zap.L().Info("environment ready",
		zap.String("store", c.Store.Driver),
		zap.String("embedding", c.Embedding.Provider),
		zap.String("model", c.Anthropic.Model),
	)
	return env, nil
}

// initStore opens the configured store, or returns nil for driver "none".
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		return store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	case "none":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

func initEmbedder(c *config.Config) index.Embedder {
	if c.Embedding.Provider == "hash" {
		return index.NewHashEmbedder(c.Embedding.Dimensions)
	}
	return openaipkg.NewEmbedder(openaipkg.Config{
		APIKey:     c.OpenAI.Key,
		Model:      c.OpenAI.EmbeddingModel,
		BaseURL:    c.OpenAI.BaseURL,
		Dimensions: c.Embedding.Dimensions,
		Policy:     retryPolicy(c.Retry, "openai"),
	})
}

func initGenerator(c *config.Config) extract.Generator {
	client := anthropicpkg.NewClient(c.Anthropic.Key)
	return anthropicpkg.NewGenerator(client, anthropicpkg.GeneratorConfig{
		Model:             c.Anthropic.Model,
		MaxTokens:         c.Anthropic.MaxTokens,
		RequestsPerSecond: c.Anthropic.RequestsPerSecond,
		Policy:            retryPolicy(c.Retry, "anthropic"),
	})
}

// retryPolicy builds the retry and breaker policy for one provider.
func retryPolicy(rc config.RetryConfig, name string) resilience.Policy {
	return resilience.Policy{
		Retry: resilience.FromMillis(rc.MaxAttempts, rc.InitialBackoffMs, rc.MaxBackoffMs),
		Breaker: resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:             name,
			FailureThreshold: rc.BreakerThreshold,
			Cooldown:         time.Duration(rc.BreakerCooldownSecs) * time.Second,
		}),
	}
}
