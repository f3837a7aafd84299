package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sera-labs/voicekit/internal/command"
)

// SQLite is a SQLite-backed store.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath with WAL mode.
func Open(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		gtd_status TEXT NOT NULL,
		deadline INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, created_at);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id, created_at);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		starts_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, starts_at);

	CREATE TABLE IF NOT EXISTS command_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		transcript TEXT NOT NULL,
		confidence REAL NOT NULL,
		success INTEGER NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		side_effect_ref TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON command_history(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateTask inserts a task and returns its ID.
func (s *SQLite) CreateTask(ctx context.Context, userID string, t command.TaskPayload) (string, error) {
	id := uuid.NewString()
	var deadline *int64
	if t.Deadline != nil {
		d := t.Deadline.Unix()
		deadline = &d
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, priority, gtd_status, deadline, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, t.Title, t.Description, string(t.Priority), string(t.GTDStatus), deadline, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// CreateNote inserts a note and returns its ID.
func (s *SQLite) CreateNote(ctx context.Context, userID string, n command.NotePayload) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, n.Title, n.Content, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

// CreateEvent inserts a calendar event and returns its ID.
func (s *SQLite) CreateEvent(ctx context.Context, userID string, e command.EventPayload) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, title, starts_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, e.Title, e.StartsAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// Search runs a substring match over the requested scope. Read-only.
func (s *SQLite) Search(ctx context.Context, userID string, p command.SearchPayload) ([]command.SearchHit, error) {
	pattern := "%" + p.Query + "%"
	var hits []command.SearchHit

	scoped := func(scope string) bool {
		return p.Scope == "all" || p.Scope == scope
	}

	if scoped("tasks") {
		if err := s.collect(ctx, &hits, "task",
			`SELECT id, title FROM tasks WHERE user_id = ? AND (title LIKE ? OR description LIKE ?) ORDER BY created_at DESC LIMIT 20`,
			userID, pattern, pattern); err != nil {
			return nil, err
		}
	}
	if scoped("notes") {
		if err := s.collect(ctx, &hits, "note",
			`SELECT id, title FROM notes WHERE user_id = ? AND (title LIKE ? OR content LIKE ?) ORDER BY created_at DESC LIMIT 20`,
			userID, pattern, pattern); err != nil {
			return nil, err
		}
	}
	if scoped("events") {
		if err := s.collect(ctx, &hits, "event",
			`SELECT id, title FROM events WHERE user_id = ? AND title LIKE ? ORDER BY starts_at DESC LIMIT 20`,
			userID, pattern); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (s *SQLite) collect(ctx context.Context, hits *[]command.SearchHit, kind, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("search %ss: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref, title string
		if err := rows.Scan(&ref, &title); err != nil {
			return fmt.Errorf("scan %s hit: %w", kind, err)
		}
		*hits = append(*hits, command.SearchHit{Kind: kind, Ref: ref, Title: title})
	}
	return rows.Err()
}

// RecordCommand appends one executed command to the history.
func (s *SQLite) RecordCommand(ctx context.Context, rec CommandRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_history (id, user_id, intent, transcript, confidence, success, error_kind, side_effect_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Intent, rec.Transcript, rec.Confidence, success, rec.ErrorKind, rec.SideEffectRef, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert command record: %w", err)
	}
	return nil
}

// ListTasks returns the user's most recent tasks.
func (s *SQLite) ListTasks(ctx context.Context, userID string, limit int) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, priority, gtd_status, deadline, created_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var deadline sql.NullInt64
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.GTDStatus, &deadline, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if deadline.Valid {
			d := time.Unix(deadline.Int64, 0)
			t.Deadline = &d
		}
		t.CreatedAt = time.Unix(created, 0)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListNotes returns the user's most recent notes.
func (s *SQLite) ListNotes(ctx context.Context, userID string, limit int) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, created_at FROM notes WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = time.Unix(created, 0)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ListEvents returns the user's upcoming events ordered by start time.
func (s *SQLite) ListEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, starts_at, created_at FROM events WHERE user_id = ? ORDER BY starts_at ASC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var starts, created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &starts, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.StartsAt = time.Unix(starts, 0)
		e.CreatedAt = time.Unix(created, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListCommandHistory returns the user's most recent executed commands.
func (s *SQLite) ListCommandHistory(ctx context.Context, userID string, limit int) ([]CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, intent, transcript, confidence, success, error_kind, side_effect_ref, created_at
		 FROM command_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query command history: %w", err)
	}
	defer rows.Close()

	var recs []CommandRecord
	for rows.Next() {
		var r CommandRecord
		var success int
		var created int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.Intent, &r.Transcript, &r.Confidence, &success, &r.ErrorKind, &r.SideEffectRef, &created); err != nil {
			return nil, fmt.Errorf("scan command record: %w", err)
		}
		r.Success = success == 1
		r.CreatedAt = time.Unix(created, 0)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
