package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariavasulin/YouLearn/internal/api"
	"github.com/ariavasulin/YouLearn/internal/app"
	"github.com/ariavasulin/YouLearn/internal/config"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	a.Enricher.Start(ctx)

	srv := api.NewServer(api.Deps{
		Notebook:  a.Notebook,
		Compiler:  a.Compiler,
		Artifacts: a.Artifacts,
		Enricher:  a.Enricher,
		Stats:     a.Stats,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.CompileTimeout*3 + 30*time.Second, // aggregate compiles run three passes
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting notebook server", "port", cfg.Port, "root", a.Notebook.Root())
	err = serve(sigCtx, httpServer, ln, func() {
		cancel()
		a.Enricher.Wait()
		a.Close()
	}, log)
	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs srv on ln until ctx is done, then shuts it down and calls
// drain. It returns only after drain does, so detached enrichment passes
// finish before the process exits.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, drain func(), log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		drain()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}

	drain()
	log.Info("enrichment drained")

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
