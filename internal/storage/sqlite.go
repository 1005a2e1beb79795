package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
	logx "calbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	ttl time.Duration
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log, ttl: pendingTTL(cfg)}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Events(userID int64) calendar.Store {
	return &sqliteEvents{db: s.db, userID: userID}
}

func (s *sqliteStore) Users(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM events ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Policy(ctx context.Context, userID int64) (schedule.WorkPolicy, bool, error) {
	var workStart, workEnd, tz string
	var breakStart, breakEnd sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT work_start, work_end, break_start, break_end, timezone FROM policies WHERE user_id = ?`,
		userID,
	).Scan(&workStart, &workEnd, &breakStart, &breakEnd, &tz)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.WorkPolicy{}, false, nil
	}
	if err != nil {
		return schedule.WorkPolicy{}, false, err
	}

	p := schedule.WorkPolicy{Timezone: tz}
	if p.WorkStart, err = schedule.ParseClockHHMM(workStart); err != nil {
		return schedule.WorkPolicy{}, false, fmt.Errorf("policy user %d: %w", userID, err)
	}
	if p.WorkEnd, err = schedule.ParseClockHHMM(workEnd); err != nil {
		return schedule.WorkPolicy{}, false, fmt.Errorf("policy user %d: %w", userID, err)
	}
	if breakStart.Valid && breakEnd.Valid {
		bs, err := schedule.ParseClockHHMM(breakStart.String)
		if err != nil {
			return schedule.WorkPolicy{}, false, fmt.Errorf("policy user %d: %w", userID, err)
		}
		be, err := schedule.ParseClockHHMM(breakEnd.String)
		if err != nil {
			return schedule.WorkPolicy{}, false, fmt.Errorf("policy user %d: %w", userID, err)
		}
		p.BreakStart, p.BreakEnd = &bs, &be
	}
	return p, true, nil
}

func (s *sqliteStore) SavePolicy(ctx context.Context, userID int64, p schedule.WorkPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var breakStart, breakEnd any
	if p.BreakStart != nil && p.BreakEnd != nil {
		breakStart, breakEnd = p.BreakStart.String(), p.BreakEnd.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policies(user_id, work_start, work_end, break_start, break_end, timezone)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   work_start=excluded.work_start, work_end=excluded.work_end,
		   break_start=excluded.break_start, break_end=excluded.break_end,
		   timezone=excluded.timezone`,
		userID, p.WorkStart.String(), p.WorkEnd.String(), breakStart, breakEnd, p.Timezone,
	)
	return err
}

func (s *sqliteStore) PutPending(ctx context.Context, userID int64, p PendingConfirmation) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending(user_id, payload, expires_ms) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET payload=excluded.payload, expires_ms=excluded.expires_ms`,
		userID, string(payload), p.CreatedAt.Add(s.ttl).UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetPending(ctx context.Context, userID int64) (PendingConfirmation, error) {
	var payload string
	var expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_ms FROM pending WHERE user_id = ?`, userID,
	).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingConfirmation{}, ErrNoPending
	}
	if err != nil {
		return PendingConfirmation{}, err
	}
	if time.Now().UnixMilli() > expires {
		_ = s.DeletePending(ctx, userID)
		return PendingConfirmation{}, ErrNoPending
	}

	var p PendingConfirmation
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return PendingConfirmation{}, err
	}
	return p, nil
}

func (s *sqliteStore) DeletePending(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending WHERE user_id = ?`, userID)
	return err
}

// sqliteEvents is one user's slice of the events table.
type sqliteEvents struct {
	db     *sql.DB
	userID int64
}

func (e *sqliteEvents) ListEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, title, start_ms, end_ms, COALESCE(description, '')
		 FROM events
		 WHERE user_id = ? AND start_ms < ? AND end_ms > ?
		 ORDER BY start_ms`,
		e.userID, end.UnixMilli(), start.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		var ev calendar.Event
		var startMS, endMS int64
		if err := rows.Scan(&ev.ID, &ev.Title, &startMS, &endMS, &ev.Description); err != nil {
			return nil, err
		}
		ev.Start = time.UnixMilli(startMS).UTC()
		ev.End = time.UnixMilli(endMS).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (e *sqliteEvents) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (calendar.Event, error) {
	ev := calendar.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Start:       start,
		End:         end,
		Description: description,
	}
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO events(id, user_id, title, start_ms, end_ms, description, created_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		ev.ID, e.userID, ev.Title, ev.Start.UnixMilli(), ev.End.UnixMilli(),
		nullStr(ev.Description), time.Now().UnixMilli(),
	)
	if err != nil {
		return calendar.Event{}, err
	}
	return ev, nil
}

func (e *sqliteEvents) DeleteEvent(ctx context.Context, id string) error {
	res, err := e.db.ExecContext(ctx,
		`DELETE FROM events WHERE user_id = ? AND id = ?`, e.userID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return calendar.ErrNotFound
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
