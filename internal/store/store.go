// Package store persists tasks, notes, events, and command history in
// SQLite. It implements the router's store collaborator contract.
package store

import "time"

// Task is a persisted task record.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	GTDStatus   string     `json:"gtd_status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Note is a persisted note record.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a persisted calendar event record.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CommandRecord is one executed command, kept for history.
type CommandRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Intent        string    `json:"intent"`
	Transcript    string    `json:"transcript"`
	Confidence    float64   `json:"confidence"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	SideEffectRef string    `json:"side_effect_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
