package trace

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxSessions = 500

// ErrNotFound is returned by the Get methods for unknown ids.
var ErrNotFound = errors.New("trace not found")

// Store persists traces to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the trace database and applies pending migrations.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	dir, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		slog.Info("trace migration applied", "source", r.Source.Path, "duration_ms", r.Duration.Milliseconds())
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a session row and prunes the oldest beyond the
// retention limit.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, interview_session_id, prompt_source, prompt_fingerprint, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.InterviewSessionID, sess.PromptSource, sess.PromptFingerprint, sess.StartedAt.UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT $1)`,
		maxSessions,
	)
	return err
}

// EndSession stamps the session end time.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended_at = $1 WHERE id = $2`, at.UTC(), id)
	return err
}

// CreateTurn inserts a turn row in its started state.
func (s *Store) CreateTurn(ctx context.Context, t Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, started_at, status) VALUES ($1, $2, $3, $4)`,
		t.ID, t.SessionID, t.StartedAt.UTC(), t.Status,
	)
	return err
}

// UpdateTurn records a finished turn.
func (s *Store) UpdateTurn(ctx context.Context, t Turn) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET duration_ms = $1, transcript = $2, reply = $3, status = $4 WHERE id = $5`,
		t.DurationMs, t.Transcript, t.Reply, t.Status, t.ID,
	)
	return err
}

// CreateSpan inserts one stage span.
func (s *Store) CreateSpan(ctx context.Context, sp Span) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (id, turn_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.TurnID, sp.Name, sp.StartedAt.UTC(),
		sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	return err
}

// ListSessions returns sessions newest first with turn counts, plus the total.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]Session, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.interview_session_id, s.prompt_source, s.prompt_fingerprint,
		       s.started_at, s.ended_at, COUNT(t.id)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var endedAt sql.NullTime
		if err = rows.Scan(&sess.ID, &sess.InterviewSessionID, &sess.PromptSource, &sess.PromptFingerprint,
			&sess.StartedAt, &endedAt, &sess.TurnCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// GetSession returns one session with its turns in order.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, []Turn, error) {
	var sess Session
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, interview_session_id, prompt_source, prompt_fingerprint, started_at, ended_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.InterviewSessionID, &sess.PromptSource, &sess.PromptFingerprint, &sess.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.session_id, t.started_at, t.duration_ms, t.transcript, t.reply, t.status,
		       COUNT(sp.id)
		FROM turns t
		LEFT JOIN spans sp ON sp.turn_id = t.id
		WHERE t.session_id = $1
		GROUP BY t.id
		ORDER BY t.started_at ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err = rows.Scan(&t.ID, &t.SessionID, &t.StartedAt, &t.DurationMs, &t.Transcript, &t.Reply, &t.Status, &t.SpanCount); err != nil {
			return nil, nil, err
		}
		turns = append(turns, t)
	}
	sess.TurnCount = len(turns)
	return &sess, turns, rows.Err()
}

// GetTurn returns one turn of a session with its spans.
func (s *Store) GetTurn(ctx context.Context, sessionID, turnID string) (*Turn, []Span, error) {
	var t Turn
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, started_at, duration_ms, transcript, reply, status
		 FROM turns WHERE id = $1 AND session_id = $2`,
		turnID, sessionID,
	).Scan(&t.ID, &t.SessionID, &t.StartedAt, &t.DurationMs, &t.Transcript, &t.Reply, &t.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id, name, started_at, duration_ms, input, output, status, error_msg
		 FROM spans WHERE turn_id = $1 ORDER BY started_at ASC`,
		turnID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	spans := []Span{}
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.TurnID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	t.SpanCount = len(spans)
	return &t, spans, rows.Err()
}
