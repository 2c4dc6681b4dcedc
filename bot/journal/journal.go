// Package journal keeps an append-only audit trail of processed dialogue inputs.
// Entries are never read back to restore a conversation.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/calcbot/core/logger"
)

// Sources of an exchange.
const (
	SourceTelegram = "telegram"
	SourceConsole  = "console"
)

// Entry is one processed input with the reply it produced.
type Entry struct {
	ID          uuid.UUID `db:"id"`
	Source      string    `db:"source"`
	ChatID      int64     `db:"chat_id"`
	UserID      int64     `db:"user_id"`
	Input       string    `db:"input"`
	InputKind   string    `db:"input_kind"`
	StageBefore string    `db:"stage_before"`
	StageAfter  string    `db:"stage_after"`
	Reply       string    `db:"reply"`
	ErrCode     string    `db:"err_code"`
	CreatedAt   time.Time `db:"created_at"`
}

// Recorder appends entries to the journal.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards every entry. It is used when the database is disabled.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

const insertEntry = `
INSERT INTO dialogue_exchanges
    (id, source, chat_id, user_id, input, input_kind, stage_before, stage_after, reply, err_code, created_at)
VALUES
    (:id, :source, :chat_id, :user_id, :input, :input_kind, :stage_before, :stage_after, :reply, :err_code, :created_at)`

// Store writes entries to the dialogue_exchanges table.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record inserts e, assigning an id and timestamp when they are unset.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if _, err := s.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		return fmt.Errorf("journal: insert exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit latest entries of a chat, newest first. It serves
// diagnostics only.
func (s *Store) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Entry
	q := s.db.Rebind(`SELECT id, source, chat_id, user_id, input, input_kind, stage_before, stage_after, reply, err_code, created_at
FROM dialogue_exchanges WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, chatID, limit); err != nil {
		return nil, fmt.Errorf("journal: select exchanges: %w", err)
	}
	return out, nil
}

// Open returns a Store for db, or Nop when db is nil.
func Open(db *sqlx.DB) Recorder {
	if db == nil {
		return Nop{}
	}
	return NewStore(db)
}

type quiet struct {
	next Recorder
}

// Quiet wraps r so that failures are logged and never returned. A journal
// outage must not change what the user sees.
func Quiet(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return quiet{next: r}
}

func (q quiet) Record(ctx context.Context, e Entry) error {
	start := time.Now()
	err := q.next.Record(ctx, e)
	if err != nil {
		logger.LogEvent(ctx, logger.Journal, slog.LevelWarn, "journal.record",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil
	}
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.Journal, slog.LevelDebug, "journal.record",
			slog.String("status", "ok"),
			slog.String("exchange_id", e.ID.String()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}
