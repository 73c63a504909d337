package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/extract"
	"github.com/zgr-ai/sow-cli/internal/pipeline"
	"github.com/zgr-ai/sow-cli/internal/requirements"
	"github.com/zgr-ai/sow-cli/internal/store"
	"github.com/zgr-ai/sow-cli/pkg/anthropic"
	"github.com/zgr-ai/sow-cli/pkg/samgov"
)

// env bundles the wired collaborators for a command invocation.
type env struct {
	Store    store.AnalysisStore
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// openStore connects the configured backend.
func openStore(ctx context.Context) (store.AnalysisStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires the full pipeline. With no Anthropic key the LLM tier is
// disabled and every notice uses the keyword tier.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "store ping")
	}

	var aiClient anthropic.Client
	if cfg.Anthropic.Key != "" {
		aiClient = anthropic.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Info("anthropic key not set, llm extraction tier disabled")
	}

	reqs, err := requirements.New(aiClient, cfg.Anthropic, cfg.Pipeline)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init requirement extractor")
	}

	p := pipeline.New(
		cfg,
		samgov.New(cfg.SAM),
		extract.New(cfg.Extract.PdfToTextPath),
		reqs,
		st,
	)

	return &env{Store: st, Pipeline: p}, nil
}
