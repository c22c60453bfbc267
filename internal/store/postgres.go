package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history and events in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			user_addr TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (user_addr, created_at);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			user_addr TEXT NOT NULL,
			action TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			sent_before BOOLEAN NOT NULL DEFAULT FALSE,
			sent_after BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			retired_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_active ON events (user_addr) WHERE retired_at IS NULL;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, user_addr, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.User, string(msg.Role), msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, user string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_addr, role, content, created_at
		 FROM messages WHERE user_addr=$1 ORDER BY created_at DESC LIMIT $2`,
		user, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.User, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		m.Role = Role(role)
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) AddEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, user_addr, action, scheduled_at, sent_before, sent_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.User, ev.Action, ev.ScheduledAt, ev.SentBefore, ev.SentAfter, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveEvents(ctx context.Context) ([]Event, error) {
	return s.queryEvents(ctx,
		`SELECT id, user_addr, action, scheduled_at, sent_before, sent_after, created_at
		 FROM events WHERE retired_at IS NULL ORDER BY scheduled_at`)
}

func (s *PostgresStore) UserEvents(ctx context.Context, user string) ([]Event, error) {
	return s.queryEvents(ctx,
		`SELECT id, user_addr, action, scheduled_at, sent_before, sent_after, created_at
		 FROM events WHERE retired_at IS NULL AND user_addr=$1 ORDER BY scheduled_at`, user)
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var items []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &e.ScheduledAt, &e.SentBefore, &e.SentAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateEvents(ctx context.Context, evs []Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range evs {
		// OR with the stored flags keeps them monotonic even if a stale
		// copy is handed back. retired_at is set exactly when both flags
		// become true.
		tag, err := tx.Exec(ctx,
			`UPDATE events SET
				sent_before = sent_before OR $2,
				sent_after = sent_after OR $3,
				retired_at = CASE WHEN (sent_before OR $2) AND (sent_after OR $3)
					THEN COALESCE(retired_at, now()) ELSE retired_at END
			 WHERE id = $1`,
			ev.ID, ev.SentBefore, ev.SentAfter,
		)
		if err != nil {
			return fmt.Errorf("update event %s: %w", ev.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrEventNotFound, ev.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
