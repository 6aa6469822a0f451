// Command ingest builds the corpus index from a PDF or text document and
// announces the rebuilt index on NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/wessley-fleet/pkg/app"
	"github.com/WessleyAI/wessley-fleet/pkg/config"
	"github.com/WessleyAI/wessley-fleet/pkg/natsutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "ingest:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile   = fs.String("env", "", "env file to load before FLEET_* variables (default .env when present)")
		store     = fs.String("store", "", "corpus store: sqlite or qdrant (overrides FLEET_CORPUS_STORE)")
		dbPath    = fs.String("db", "", "SQLite index path (overrides FLEET_CORPUS_SQLITE_PATH)")
		chunkSize = fs.Int("chunk-size", 0, "chunk size in characters (overrides FLEET_CORPUS_CHUNK_SIZE)")
		overlap   = fs.Int("overlap", -1, "chunk overlap in characters (overrides FLEET_CORPUS_CHUNK_OVERLAP)")
		noPublish = fs.Bool("no-publish", false, "do not publish the reload event")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ingest [flags] <document.pdf|document.txt>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one document path")
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*envFile)
	if err != nil {
		return err
	}
	if *store != "" {
		cfg.Corpus.Store = *store
	}
	if *dbPath != "" {
		cfg.Corpus.SQLitePath = *dbPath
	}
	if *chunkSize > 0 {
		cfg.Corpus.ChunkSize = *chunkSize
	}
	if *overlap >= 0 {
		cfg.Corpus.ChunkOverlap = *overlap
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := config.LogConfig{Level: cfg.Log.Level, Format: "text"}.NewLogger(stderr)

	ix, st, err := app.NewIndex(cfg, log, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	start := time.Now()
	sum, err := ix.Ingest(ctx, path)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "indexed %s: %d pages, %d chunks, %d dimensions into %s in %s\n",
		sum.Source, sum.Pages, sum.Chunks, sum.Dimensions, cfg.Corpus.Store, time.Since(start).Round(time.Millisecond))

	if cfg.NATS.URL == "" || *noPublish {
		return nil
	}
	return publish(ctx, cfg, log, natsutil.CorpusReloaded{
		Path:   path,
		Chunks: sum.Chunks,
		Store:  cfg.Corpus.Store,
		At:     time.Now().UTC(),
	})
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func publish(ctx context.Context, cfg *config.Config, log *slog.Logger, ev natsutil.CorpusReloaded) error {
	nc, err := natsutil.Connect(cfg.NATS.URL, "fleet-ingest", log)
	if err != nil {
		return err
	}
	defer nc.Close()
	if err := natsutil.PublishReload(ctx, nc, ev); err != nil {
		return fmt.Errorf("publish reload: %w", err)
	}
	log.Info("reload event published", "subject", natsutil.SubjectCorpusReloaded, "chunks", ev.Chunks)
	return nil
}
