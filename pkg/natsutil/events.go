package natsutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectCorpusReloaded announces that a new corpus index was written.
const SubjectCorpusReloaded = "fleet.corpus.reloaded"

// CorpusReloaded is published after a successful ingestion.
type CorpusReloaded struct {
	Path   string    `json:"path"`
	Chunks int       `json:"chunks"`
	Store  string    `json:"store"`
	At     time.Time `json:"at"`
}

// PublishReload announces a rebuilt corpus and flushes the connection, so
// short-lived publishers do not exit before the event is sent.
func PublishReload(ctx context.Context, nc *nats.Conn, ev CorpusReloaded) error {
	if err := Publish(ctx, nc, SubjectCorpusReloaded, ev); err != nil {
		return err
	}
	return nc.Flush()
}

// OnReload calls handler for every corpus reload event.
func OnReload(nc *nats.Conn, log *slog.Logger, handler func(context.Context, CorpusReloaded)) (*nats.Subscription, error) {
	return Subscribe(nc, SubjectCorpusReloaded, log, handler)
}
