package command

import (
	"strings"
	"time"
)

// Priority is a task priority level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// GTDStatus is a task's getting-things-done bucket.
type GTDStatus string

const (
	GTDNow   GTDStatus = "NOW"
	GTDNext  GTDStatus = "NEXT"
	GTDLater GTDStatus = "LATER"
)

// TaskPayload is the validated create_task command body.
type TaskPayload struct {
	Title       string
	Description string
	Priority    Priority
	GTDStatus   GTDStatus
	Deadline    *time.Time
}

// NotePayload is the validated create_note command body.
type NotePayload struct {
	Title   string
	Content string
}

// EventPayload is the validated create_event command body with the start
// time fully resolved in the caller's local timezone.
type EventPayload struct {
	Title    string
	StartsAt time.Time
}

// SearchPayload is the validated search command body.
type SearchPayload struct {
	Query string
	Scope string
}

// dataString extracts a trimmed string field from the loose processor map.
func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// taskPayload validates create_task data. Returns the offending field name
// when a required field is missing.
func taskPayload(data map[string]any, now time.Time) (TaskPayload, string) {
	title := dataString(data, "title")
	if title == "" {
		return TaskPayload{}, "title"
	}

	p := TaskPayload{
		Title:       title,
		Description: dataString(data, "description"),
		Priority:    PriorityMedium,
		GTDStatus:   GTDNext,
	}

	switch Priority(strings.ToLower(dataString(data, "priority"))) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		p.Priority = Priority(strings.ToLower(dataString(data, "priority")))
	}
	switch GTDStatus(strings.ToUpper(dataString(data, "gtd_status"))) {
	case GTDNow, GTDNext, GTDLater:
		p.GTDStatus = GTDStatus(strings.ToUpper(dataString(data, "gtd_status")))
	}

	if deadline := dataString(data, "deadline"); deadline != "" {
		if d, ok := ResolveDate(deadline, now); ok {
			p.Deadline = &d
		}
	}
	return p, ""
}

// notePayload validates create_note data: at least one of title/content must
// be non-empty.
func notePayload(data map[string]any) (NotePayload, string) {
	p := NotePayload{
		Title:   dataString(data, "title"),
		Content: dataString(data, "content"),
	}
	if p.Title == "" && p.Content == "" {
		return NotePayload{}, "title"
	}
	return p, ""
}

// eventPayload validates create_event data and resolves date/time tokens
// into an absolute local start time.
func eventPayload(data map[string]any, now time.Time) (EventPayload, string) {
	title := dataString(data, "title")
	if title == "" {
		return EventPayload{}, "title"
	}
	return EventPayload{
		Title:    title,
		StartsAt: ResolveStart(dataString(data, "date"), dataString(data, "time"), now),
	}, ""
}

// searchPayload validates search data.
func searchPayload(data map[string]any) (SearchPayload, string) {
	q := dataString(data, "query")
	if q == "" {
		return SearchPayload{}, "query"
	}
	scope := strings.ToLower(dataString(data, "scope"))
	switch scope {
	case "tasks", "notes", "events":
	default:
		scope = "all"
	}
	return SearchPayload{Query: q, Scope: scope}, ""
}
