// Package transcript stores the recorded conversations the replay evaluator
// scores candidates against.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"swarmhub/internal/domain"
)

// SQLiteStore keeps the transcript corpus in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the corpus database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate transcript db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id     TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			turns  TEXT NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_domain ON transcripts(domain)`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save upserts one recorded conversation.
func (s *SQLiteStore) Save(ctx context.Context, conv domain.RecordedConversation) error {
	turns, err := json.Marshal(conv.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, domain, turns) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET domain = excluded.domain, turns = excluded.turns`,
		conv.ID, conv.Domain, string(turns))
	return err
}

// Transcripts returns up to limit conversations recorded for domainName.
func (s *SQLiteStore) Transcripts(ctx context.Context, domainName string, limit int) ([]domain.RecordedConversation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, turns FROM transcripts WHERE domain = ? ORDER BY id LIMIT ?`,
		domainName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecordedConversation
	for rows.Next() {
		var conv domain.RecordedConversation
		var turns string
		if err := rows.Scan(&conv.ID, &conv.Domain, &turns); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(turns), &conv.Turns); err != nil {
			return nil, fmt.Errorf("parse turns for %s: %w", conv.ID, err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// fixtureFile is the YAML shape of a seed corpus.
type fixtureFile struct {
	Transcripts []domain.RecordedConversation `yaml:"transcripts"`
}

// SeedFromYAML loads fixture conversations from a YAML file into the store.
// Existing IDs are overwritten, so reseeding is idempotent.
func (s *SQLiteStore) SeedFromYAML(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse fixtures: %w", err)
	}
	for _, conv := range f.Transcripts {
		if err := s.Save(ctx, conv); err != nil {
			return 0, err
		}
	}
	return len(f.Transcripts), nil
}
