package semantic

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords() []Record {
	return []Record{
		{ChunkIndex: 0, Page: 1, Source: "raport.pdf", Text: "Toyota Corolla hybryda", Embedding: []float32{1, 0, 0, 0}},
		{ChunkIndex: 1, Page: 1, Source: "raport.pdf", Text: "Skoda Octavia diesel", Embedding: []float32{0, 1, 0, 0}},
		{ChunkIndex: 2, Page: 2, Source: "raport.pdf", Text: "Kia Ceed benzyna", Embedding: []float32{0.9, 0.1, 0, 0}},
	}
}

func TestMemorySnapshotOrdersBySimilarity(t *testing.T) {
	snap := NewMemorySnapshot(sampleRecords())
	hits, err := snap.Search(context.Background(), []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].ChunkIndex != 0 || hits[1].ChunkIndex != 2 {
		t.Fatalf("unexpected order %d, %d", hits[0].ChunkIndex, hits[1].ChunkIndex)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatal("scores not descending")
	}
}

func TestMemorySnapshotTiesKeepChunkOrder(t *testing.T) {
	recs := []Record{
		{ChunkIndex: 0, Embedding: []float32{0, 1}},
		{ChunkIndex: 1, Embedding: []float32{0, 1}},
	}
	hits, _ := NewMemorySnapshot(recs).Search(context.Background(), []float32{0, 1}, 5)
	if hits[0].ChunkIndex != 0 || hits[1].ChunkIndex != 1 {
		t.Fatalf("tie order changed: %+v", hits)
	}
}

func TestMemorySnapshotEdgeCases(t *testing.T) {
	snap := NewMemorySnapshot(sampleRecords())
	if hits, err := snap.Search(context.Background(), []float32{1, 0, 0, 0}, 0); err != nil || hits != nil {
		t.Fatalf("k=0: %v %v", hits, err)
	}
	if _, err := snap.Search(context.Background(), []float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	hits, _ := snap.Search(context.Background(), []float32{0, 0, 0, 0}, 1)
	if hits[0].Score != 0 {
		t.Fatalf("zero vector score = %v", hits[0].Score)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := snap.Search(ctx, []float32{1, 0, 0, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "corpus.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	if _, ok, err := s.Open(ctx); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.BuiltAt(ctx); ok {
		t.Fatal("fresh store has built_at")
	}

	in := sampleRecords()
	in[1].Text = "Zużycie: 5,4 l/100 km\n\tśrednio — \"cytat\""
	if err := s.Replace(ctx, in); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	snap, ok, err := s.Open(ctx)
	if err != nil || !ok {
		t.Fatalf("Open: ok=%v err=%v", ok, err)
	}
	mem := snap.(*MemorySnapshot)
	got := mem.Records()
	if len(got) != len(in) {
		t.Fatalf("got %d records", len(got))
	}
	for i := range in {
		if got[i].Text != in[i].Text || got[i].Page != in[i].Page || got[i].Source != in[i].Source {
			t.Fatalf("record %d differs: %+v", i, got[i])
		}
		for j := range in[i].Embedding {
			if got[i].Embedding[j] != in[i].Embedding[j] {
				t.Fatalf("record %d vector differs", i)
			}
		}
	}
	at, ok, err := s.BuiltAt(ctx)
	if err != nil || !ok || time.Since(at) > time.Minute {
		t.Fatalf("BuiltAt = %v %v %v", at, ok, err)
	}
}

func TestSQLiteStoreReplaceDiscardsPrevious(t *testing.T) {
	p := filepath.Join(t.TempDir(), "corpus.sqlite")
	s, err := OpenSQLite(p)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	if err := s.Replace(ctx, sampleRecords()); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := s.Replace(ctx, sampleRecords()[:1]); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	snap, ok, err := s.Open(ctx)
	if err != nil || !ok || snap.Len() != 1 {
		t.Fatalf("after reopen: ok=%v err=%v", ok, err)
	}
}

func TestOpenSQLiteMissingPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("slot %d: %v != %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected corrupt vector error")
	}
}
