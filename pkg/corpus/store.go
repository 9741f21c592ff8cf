package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotCached is returned by Store.Load when a source has never been saved.
var ErrNotCached = errors.New("corpus source not cached")

// SetupSchema creates the corpus cache tables. It is idempotent and safe to
// call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaSources = `
CREATE TABLE IF NOT EXISTS corpus_sources (
    source_id      INTEGER  PRIMARY KEY,
    source_key     TEXT     NOT NULL UNIQUE,
    fetched_at     INTEGER  NOT NULL,
    sentence_count INTEGER  NOT NULL
);
`
		schemaSentences = `
CREATE TABLE IF NOT EXISTS corpus_sentences (
    source_id INTEGER NOT NULL,
    position  INTEGER NOT NULL,
    text      TEXT    NOT NULL,
    PRIMARY KEY (source_id, position)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaSources); err != nil {
		return fmt.Errorf("could not create sources schema: %w", err)
	}
	if _, err = tx.Exec(schemaSentences); err != nil {
		return fmt.Errorf("could not create sentences schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store caches fetched corpora in SQLite so a remote dataset is downloaded
// once rather than on every start.
type Store struct {
	db               *sql.DB
	stmtGetSource    *sql.Stmt
	stmtGetSentences *sql.Stmt
}

// NewStore prepares the statements used by the Store. SetupSchema must have
// been called on db first.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetSource, err := db.Prepare(`SELECT source_id, fetched_at FROM corpus_sources WHERE source_key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetSentences, err := db.Prepare(`SELECT text FROM corpus_sentences WHERE source_id = ? ORDER BY position;`)
	if err != nil {
		_ = stmtGetSource.Close()
		return nil, err
	}

	return &Store{
		db:               db,
		stmtGetSource:    stmtGetSource,
		stmtGetSentences: stmtGetSentences,
	}, nil
}

// Close releases the prepared statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGetSource.Close()
	_ = s.stmtGetSentences.Close()
}

// Load returns the cached sentences for key and when they were fetched.
func (s *Store) Load(ctx context.Context, key string) ([]string, time.Time, error) {
	var sourceID, fetchedAt int64
	err := s.stmtGetSource.QueryRowContext(ctx, key).Scan(&sourceID, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotCached
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to look up source '%s': %w", key, err)
	}

	rows, err := s.stmtGetSentences.QueryContext(ctx, sourceID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load sentences for '%s': %w", key, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var sentences []string
	for rows.Next() {
		var text string
		if err = rows.Scan(&text); err != nil {
			return nil, time.Time{}, err
		}
		sentences = append(sentences, text)
	}
	if err = rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return sentences, time.Unix(fetchedAt, 0), nil
}

// Save replaces the cached sentences for key within a single transaction.
func (s *Store) Save(ctx context.Context, key string, sentences []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var sourceID int64
	err = tx.QueryRowContext(ctx, `
        INSERT INTO corpus_sources (source_key, fetched_at, sentence_count) VALUES (?, ?, ?)
        ON CONFLICT(source_key) DO UPDATE SET fetched_at = excluded.fetched_at, sentence_count = excluded.sentence_count
        RETURNING source_id
    `, key, time.Now().Unix(), len(sentences)).Scan(&sourceID)
	if err != nil {
		return fmt.Errorf("failed to upsert source '%s': %w", key, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM corpus_sentences WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to clear sentences for '%s': %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_sentences (source_id, position, text) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sentence insert: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmt)

	for i, text := range sentences {
		if _, err = stmt.ExecContext(ctx, sourceID, i, text); err != nil {
			return fmt.Errorf("failed to insert sentence %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}
