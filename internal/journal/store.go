package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleylabs/parley-core/internal/config"
)

// Record is one journalled utterance event: its kind, its millisecond offset
// into the synthesised audio, and the wire payload that was published.
type Record struct {
	ID          int64
	UtteranceID string
	Kind        string
	OffsetMS    float64
	Payload     []byte
	CreatedAt   time.Time
}

// Store keeps a SQLite-backed journal of utterances and their emitted
// events, mostly for replay and postmortem inspection of streams.
type Store struct {
	db    *sql.DB
	cfg   config.JournalConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal according to config. In ephemeral mode all
// writes are no-ops.
func Open(ctx context.Context, cfg config.JournalConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("journal vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("journal prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS utterances (
    utterance_id TEXT PRIMARY KEY,
    voice TEXT,
    format TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS utterance_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    utterance_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    offset_ms REAL,
    payload BLOB,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(utterance_id) REFERENCES utterances(utterance_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_utterance_events ON utterance_events(utterance_id, id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginUtterance ensures an utterance row exists.
func (s *Store) BeginUtterance(ctx context.Context, utteranceID, voice, format string) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances(utterance_id, voice, format, created_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(utterance_id) DO UPDATE SET voice=excluded.voice, format=excluded.format`,
		utteranceID, voice, format, s.clock().UTC())
	return err
}

// AppendRecord writes one utterance event into the journal.
func (s *Store) AppendRecord(ctx context.Context, rec Record) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterance_events(utterance_id, kind, offset_ms, payload, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		rec.UtteranceID, rec.Kind, rec.OffsetMS, rec.Payload, rec.CreatedAt)
	return err
}

// ListRecords retrieves up to limit events for an utterance in emission
// order.
func (s *Store) ListRecords(ctx context.Context, utteranceID string, limit int) ([]Record, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, utterance_id, kind, offset_ms, payload, created_at
		 FROM utterance_events WHERE utterance_id = ? ORDER BY id ASC LIMIT ?`, utteranceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &r.UtteranceID, &r.Kind, &r.OffsetMS, &r.Payload, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM utterance_events WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM utterances WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxUtterances > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM utterances WHERE utterance_id IN (
			SELECT utterance_id FROM utterances ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxUtterances)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// Ensure verifies the store's mode is internally consistent.
func (s *Store) Ensure() error {
	if s.cfg.RetentionMode == "ephemeral" && s.db != nil {
		return errors.New("ephemeral journal should not have database connection")
	}
	return nil
}
