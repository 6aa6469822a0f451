package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/semantic"
	"github.com/WessleyAI/wessley-fleet/pkg/app/apptest"
	"github.com/WessleyAI/wessley-fleet/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func setup(t *testing.T) (doc, db string) {
	t.Helper()
	t.Chdir(t.TempDir())
	srv := apptest.NewOllama(t)
	t.Setenv("FLEET_EMBEDDER_URL", srv.URL)
	t.Setenv("FLEET_NATS_URL", "")

	dir := t.TempDir()
	doc = filepath.Join(dir, "flota.txt")
	if err := os.WriteFile(doc, []byte(apptest.Corpus), 0o600); err != nil {
		t.Fatal(err)
	}
	return doc, filepath.Join(dir, "index", "corpus.db")
}

func TestRunIndexesDocument(t *testing.T) {
	doc, db := setup(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-db", db, "-chunk-size", "200", "-overlap", "0", doc}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "indexed flota.txt") || !strings.Contains(stdout.String(), "into sqlite") {
		t.Fatalf("stdout = %q", stdout.String())
	}

	store, err := semantic.OpenSQLite(db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	snap, ok, err := store.Open(context.Background())
	if err != nil || !ok || snap.Len() < 2 {
		t.Fatalf("stored snapshot: ok=%v err=%v", ok, err)
	}
}

func TestRunPublishesReload(t *testing.T) {
	doc, db := setup(t)

	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	ns.Start()
	defer ns.Shutdown()
	if !ns.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	t.Setenv("FLEET_NATS_URL", ns.ClientURL())

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	events := make(chan natsutil.CorpusReloaded, 1)
	sub, err := natsutil.OnReload(nc, nil, func(_ context.Context, ev natsutil.CorpusReloaded) { events <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-db", db, doc}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}

	select {
	case ev := <-events:
		if ev.Path != doc || ev.Store != "sqlite" || ev.Chunks < 1 || ev.At.IsZero() {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event")
	}
}

func TestRunUsageErrors(t *testing.T) {
	_, db := setup(t)
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{"-db", db}, &stdout, &stderr); err == nil {
		t.Fatal("expected error without a document")
	}
	if !strings.Contains(stderr.String(), "usage: ingest") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if err := run(context.Background(), []string{"-db", db, "-store", "redis", "x.txt"}, &stdout, &stderr); err == nil {
		t.Fatal("expected validation error for unknown store")
	}
	if err := run(context.Background(), []string{"-db", db, filepath.Join(t.TempDir(), "missing.pdf")}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for a missing document")
	}
}
