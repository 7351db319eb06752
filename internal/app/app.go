// Package app assembles the notebook service from its configuration. Both
// binaries build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/config"
	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/redis/go-redis/v9"
)

// App is a wired notebook service.
type App struct {
	Notebook  *notebook.Notebook
	Compiler  *compile.Compiler
	Artifacts *compile.ArtifactStore
	Enricher  *enrich.Orchestrator
	Stats     map[string]*capability.LatencyStats

	closers []func()
}

// Build opens the tree and wires compilation, capabilities and enrichment.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	layout, err := notebook.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return nil, err
	}
	var treeOpts []notebook.Option
	if cfg.PathLocks {
		treeOpts = append(treeOpts, notebook.WithPathLocks())
	}
	tree, err := notebook.Open(cfg.TreeRoot, treeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open tree: %w", err)
	}
	a := &App{
		Notebook: notebook.New(tree, layout),
		Stats:    make(map[string]*capability.LatencyStats),
	}

	artifactDir := cfg.ArtifactDir
	if artifactDir == "" {
		artifactDir = filepath.Join(tree.Root(), ".artifacts")
	}
	a.Artifacts, err = compile.NewArtifactStore(artifactDir)
	if err != nil {
		return nil, err
	}
	a.Compiler = compile.New(a.Notebook, compile.ExecRunner{}, a.Artifacts, compile.Options{
		Compiler:         cfg.Compiler,
		Indexer:          cfg.Indexer,
		Timeout:          cfg.CompileTimeout,
		DiagnosticBudget: cfg.DiagnosticBudget,
		Slug:             cfg.ClassSlug,
	}, log.With("component", "compile"))

	search := a.search(cfg, log)
	gen := a.generation(cfg, log)

	cursors, err := a.cursors(ctx, cfg, layout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Enricher = enrich.New(a.Notebook, cursors, search, gen, enrich.Options{
		PayloadTokens:     cfg.PayloadTokens,
		MaxOutputTokens:   cfg.MaxOutputTokens,
		SearchConcurrency: cfg.SearchConcurrency,
		CourseName:        cfg.CourseName,
		RunTTL:            cfg.RunTTL,
	}, log.With("component", "enrich"))
	return a, nil
}

// search returns nil when no search key is configured.
func (a *App) search(cfg config.Config, log *slog.Logger) capability.SearchCapability {
	if cfg.YouAPIKey == "" {
		log.Warn("no search capability configured, verification disabled")
		return nil
	}
	client := capability.NewYouComClient(cfg.SearchURL, cfg.YouAPIKey, cfg.SearchResults)
	a.closers = append(a.closers, client.Close)

	stats := capability.NewLatencyStats(time.Hour)
	a.Stats["search"] = stats
	var s capability.SearchCapability = client
	s = capability.RateLimited(s, cfg.SearchRPS, cfg.SearchBurst)
	s = capability.RetrySearch(s)
	return capability.InstrumentSearch("search", s, stats)
}

// generation returns nil when no provider is configured.
func (a *App) generation(cfg config.Config, log *slog.Logger) capability.GenerationCapability {
	var (
		g     capability.GenerationCapability
		model string
	)
	switch cfg.Generation() {
	case config.ProviderOpenRouter:
		client := capability.NewOpenAIClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel)
		g, model = client, client.Model()
	case config.ProviderAnthropic:
		client := capability.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		a.closers = append(a.closers, client.Close)
		g, model = client, client.Model()
	default:
		log.Warn("no generation capability configured, narrative synthesis disabled")
		return nil
	}
	log.Info("generation capability", "provider", cfg.Generation(), "model", model)

	stats := capability.NewLatencyStats(time.Hour)
	a.Stats["generation"] = stats
	return capability.InstrumentGeneration("generation", capability.RetryGeneration(g), stats)
}

func (a *App) cursors(ctx context.Context, cfg config.Config, layout notebook.Layout) (enrich.CursorStore, error) {
	switch cfg.CursorBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, func() { client.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return enrich.NewRedisCursorStore(client, cfg.ClassSlug), nil
	case "memory":
		return enrich.NewMemoryCursorStore(), nil
	default:
		return enrich.NewFileCursorStore(a.Notebook.Tree, layout.StateDir), nil
	}
}

// Close releases capability clients and connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
