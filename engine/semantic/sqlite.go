package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the corpus in a single SQLite file. Vectors are stored as
// little-endian float32 blobs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the index database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("semantic: missing sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("semantic: create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("semantic: open sqlite %s: %w", p, err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// single-process local DB
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=3000;`,
		`CREATE TABLE IF NOT EXISTS passages (
	chunk_index INTEGER PRIMARY KEY,
	page        INTEGER NOT NULL,
	source      TEXT NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS corpus_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`,
		`PRAGMA user_version = 1;`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("semantic: init schema: %w", err)
		}
	}
	return nil
}

// Replace implements Store. The swap happens in one transaction, so readers
// of the file see either the old or the new collection.
func (s *SQLiteStore) Replace(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("semantic: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages`); err != nil {
		return fmt.Errorf("semantic: clear passages: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (chunk_index, page, source, text, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("semantic: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ChunkIndex, r.Page, r.Source, r.Text, encodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("semantic: insert chunk %d: %w", r.ChunkIndex, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpus_meta (key, value) VALUES ('built_at', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("semantic: write meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("semantic: commit replace: %w", err)
	}
	return nil
}

// Open implements Store by loading every record into a MemorySnapshot.
func (s *SQLiteStore) Open(ctx context.Context) (Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_index, page, source, text, embedding FROM passages ORDER BY chunk_index ASC`)
	if err != nil {
		return nil, false, fmt.Errorf("semantic: query passages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var blob []byte
		if err := rows.Scan(&r.ChunkIndex, &r.Page, &r.Source, &r.Text, &blob); err != nil {
			return nil, false, fmt.Errorf("semantic: scan passage: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, false, fmt.Errorf("semantic: chunk %d: %w", r.ChunkIndex, err)
		}
		r.Embedding = vec
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("semantic: read passages: %w", err)
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return NewMemorySnapshot(records), true, nil
}

// BuiltAt returns when the stored collection was last replaced.
func (s *SQLiteStore) BuiltAt(ctx context.Context) (time.Time, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM corpus_meta WHERE key = 'built_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("semantic: read built_at: %w", err)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("semantic: parse built_at: %w", err)
	}
	return t, true, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
