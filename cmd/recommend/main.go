// Command recommend runs one fleet recommendation against the stored corpus
// index and prints the report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/pkg/app"
	"github.com/WessleyAI/wessley-fleet/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "recommend:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile  = fs.String("env", "", "env file to load before FLEET_* variables (default .env when present)")
		criteria = fs.String("criteria", "-", "selection criteria JSON file, - for stdin")
		asJSON   = fs.Bool("json", false, "print the report as JSON")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := readCriteria(*criteria, stdin)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if *envFile != "" {
		cfg, err = config.Load(*envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.CheckBackends(); err != nil {
		return err
	}
	log := config.LogConfig{Level: cfg.Log.Level, Format: "text"}.NewLogger(stderr)

	ix, st, err := app.NewIndex(cfg, log, nil)
	if err != nil {
		return err
	}
	defer st.Close()
	if ok, err := ix.Load(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	} else if !ok {
		log.Warn("no corpus index stored; the report will say no data is available")
	}

	svc := app.NewService(cfg, ix, app.NewAdapter(cfg, app.Backends(cfg), log, nil), log, nil)
	report, err := svc.Recommend(ctx, c)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = fmt.Fprintln(stdout, report.Text())
	return err
}

func readCriteria(path string, stdin io.Reader) (domain.SelectionCriteria, error) {
	c := domain.DefaultCriteria()
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return c, fmt.Errorf("read criteria: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("decode criteria %s: %w", path, err)
	}
	return c, nil
}
