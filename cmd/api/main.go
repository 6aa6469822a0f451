// Command api serves fleet recommendations over HTTP and reloads the corpus
// index when an ingest run announces a rebuild on NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/corpus"
	"github.com/WessleyAI/wessley-fleet/pkg/app"
	"github.com/WessleyAI/wessley-fleet/pkg/config"
	"github.com/WessleyAI/wessley-fleet/pkg/metrics"
	"github.com/WessleyAI/wessley-fleet/pkg/natsutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "api:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile = fs.String("env", "", "env file to load before FLEET_* variables (default .env when present)")
		addr    = fs.String("addr", "", "listen address (overrides FLEET_SERVER_ADDR)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if *envFile != "" {
		cfg, err = config.Load(*envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.CheckBackends(); err != nil {
		return err
	}

	log := cfg.Log.NewLogger(stderr)
	slog.SetDefault(log)
	m := metrics.New()

	ix, st, err := app.NewIndex(cfg, log, m)
	if err != nil {
		return err
	}
	defer st.Close()
	loadIndex(ctx, ix, log, m)

	adapter := app.NewAdapter(cfg, app.Backends(cfg), log, m)
	svc := app.NewService(cfg, ix, adapter, log, m)

	if cfg.NATS.URL != "" {
		nc, err := natsutil.Connect(cfg.NATS.URL, "fleet-api", log)
		if err != nil {
			return err
		}
		defer nc.Close()
		sub, err := natsutil.OnReload(nc, log, func(ctx context.Context, ev natsutil.CorpusReloaded) {
			log.Info("corpus reload announced", "path", ev.Path, "chunks", ev.Chunks, "store", ev.Store)
			loadIndex(ctx, ix, log, m)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", natsutil.SubjectCorpusReloaded, err)
		}
		defer sub.Unsubscribe()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: newServer(serverDeps{
			Recommender:    svc,
			Index:          ix,
			Metrics:        m,
			Logger:         log,
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
	}
	return serve(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

// loadIndex swaps in the stored snapshot. A missing index is not fatal: the
// server keeps answering with the no-data report until one is ingested.
func loadIndex(ctx context.Context, ix *corpus.Index, log *slog.Logger, m *metrics.Metrics) {
	ok, err := ix.Load(ctx)
	switch {
	case err != nil:
		log.Error("load corpus index", "err", err)
	case !ok:
		log.Warn("no corpus index stored yet; run ingest first")
	default:
		log.Info("corpus index loaded", "passages", ix.Size())
	}
	m.CorpusSize(ix.Size())
}

func serve(ctx context.Context, srv *http.Server, grace time.Duration, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
