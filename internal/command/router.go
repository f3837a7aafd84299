package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sera-labs/voicekit/internal/metrics"
)

// Store is the write/read collaborator the router dispatches to. Exactly one
// store call is made per successfully validated command, none otherwise.
type Store interface {
	CreateTask(ctx context.Context, userID string, t TaskPayload) (ref string, err error)
	CreateNote(ctx context.Context, userID string, n NotePayload) (ref string, err error)
	CreateEvent(ctx context.Context, userID string, e EventPayload) (ref string, err error)
	Search(ctx context.Context, userID string, s SearchPayload) ([]SearchHit, error)
}

// Navigator is the navigation collaborator. Nil when no navigation surface
// is attached; the router still resolves and reports the route.
type Navigator interface {
	Navigate(path string)
}

// routeTable maps spoken destinations to routes, matched case-insensitively.
var routeTable = map[string]string{
	"dashboard":   "/dashboard",
	"home":        "/dashboard",
	"calendar":    "/calendar",
	"tasks":       "/tasks",
	"projects":    "/projects",
	"notes":       "/notes",
	"analytics":   "/analytics",
	"profile":     "/profile",
	"automations": "/automations",
}

// ResolveRoute resolves a spoken destination against the fixed route table.
func ResolveRoute(destination string) (string, bool) {
	path, ok := routeTable[strings.ToLower(strings.TrimSpace(destination))]
	return path, ok
}

// Router dispatches one interpreted command to the relevant collaborator.
// Execution never throws: validation and store failures are encoded in the
// Result so the caller can surface the specific error kind.
type Router struct {
	store Store
	nav   Navigator
	now   func() time.Time
}

// NewRouter creates a router over the given collaborators.
func NewRouter(store Store, nav Navigator) *Router {
	return &Router{store: store, nav: nav, now: time.Now}
}

// Execute runs one command for the given user. Either all required fields
// validate and exactly one store call is made, or no store call is made and
// an error result is returned.
func (r *Router) Execute(ctx context.Context, userID string, cmd Interpreted) Result {
	start := time.Now()
	res := r.dispatch(ctx, userID, cmd)

	outcome := "ok"
	if !res.Success {
		outcome = string(res.Kind)
		metrics.Errors.WithLabelValues("route", string(res.Kind)).Inc()
	}
	metrics.CommandsTotal.WithLabelValues(string(cmd.Intent), outcome).Inc()
	metrics.StageDuration.WithLabelValues("execute").Observe(time.Since(start).Seconds())

	slog.Info("command executed",
		"intent", cmd.Intent,
		"success", res.Success,
		"error_kind", res.Kind,
		"ref", res.SideEffectRef,
	)
	return res
}

func (r *Router) dispatch(ctx context.Context, userID string, cmd Interpreted) Result {
	switch cmd.Intent {
	case IntentNavigate:
		return r.navigate(cmd)
	case IntentCreateTask:
		return r.createTask(ctx, userID, cmd)
	case IntentCreateNote:
		return r.createNote(ctx, userID, cmd)
	case IntentCreateEvent:
		return r.createEvent(ctx, userID, cmd)
	case IntentSearch:
		return r.search(ctx, userID, cmd)
	case IntentGeneral:
		// No store call; the caller forwards the utterance to the
		// conversational surface.
		return Result{Intent: IntentGeneral, Success: true, Message: cmd.Response}
	default:
		return Result{Intent: cmd.Intent, Success: true, Message: cmd.Response}
	}
}

func (r *Router) navigate(cmd Interpreted) Result {
	dest := dataString(cmd.Data, "destination")
	path, ok := ResolveRoute(dest)
	if !ok {
		return Result{
			Intent:  IntentNavigate,
			Success: false,
			Kind:    ErrKindUnknownDestination,
			Field:   "destination",
			Message: fmt.Sprintf("I don't know how to open %q.", dest),
		}
	}
	if r.nav != nil {
		r.nav.Navigate(path)
	}
	return Result{
		Intent:        IntentNavigate,
		Success:       true,
		SideEffectRef: path,
		Message:       "Opening " + strings.TrimPrefix(path, "/") + ".",
	}
}

func (r *Router) createTask(ctx context.Context, userID string, cmd Interpreted) Result {
	p, missing := taskPayload(cmd.Data, r.now())
	if missing != "" {
		return missingField(IntentCreateTask, missing)
	}
	ref, err := r.store.CreateTask(ctx, userID, p)
	if err != nil {
		return storeFailure(IntentCreateTask, "create_task", err)
	}
	return Result{
		Intent:        IntentCreateTask,
		Success:       true,
		SideEffectRef: ref,
		Message:       fmt.Sprintf("Task %q created.", p.Title),
	}
}

func (r *Router) createNote(ctx context.Context, userID string, cmd Interpreted) Result {
	p, missing := notePayload(cmd.Data)
	if missing != "" {
		return missingField(IntentCreateNote, missing)
	}
	ref, err := r.store.CreateNote(ctx, userID, p)
	if err != nil {
		return storeFailure(IntentCreateNote, "create_note", err)
	}
	title := p.Title
	if title == "" {
		title = "note"
	}
	return Result{
		Intent:        IntentCreateNote,
		Success:       true,
		SideEffectRef: ref,
		Message:       fmt.Sprintf("Note %q saved.", title),
	}
}

func (r *Router) createEvent(ctx context.Context, userID string, cmd Interpreted) Result {
	p, missing := eventPayload(cmd.Data, r.now())
	if missing != "" {
		return missingField(IntentCreateEvent, missing)
	}
	ref, err := r.store.CreateEvent(ctx, userID, p)
	if err != nil {
		return storeFailure(IntentCreateEvent, "create_event", err)
	}
	return Result{
		Intent:        IntentCreateEvent,
		Success:       true,
		SideEffectRef: ref,
		Message:       fmt.Sprintf("Event %q scheduled for %s.", p.Title, p.StartsAt.Format("Mon Jan 2 at 3:04 PM")),
	}
}

func (r *Router) search(ctx context.Context, userID string, cmd Interpreted) Result {
	p, missing := searchPayload(cmd.Data)
	if missing != "" {
		return missingField(IntentSearch, missing)
	}
	hits, err := r.store.Search(ctx, userID, p)
	if err != nil {
		return storeFailure(IntentSearch, "search", err)
	}
	return Result{
		Intent:  IntentSearch,
		Success: true,
		Hits:    hits,
		Message: fmt.Sprintf("Found %d results for %q.", len(hits), p.Query),
	}
}

func missingField(intent Intent, field string) Result {
	return Result{
		Intent:  intent,
		Success: false,
		Kind:    ErrKindMissingField,
		Field:   field,
		Message: fmt.Sprintf("I need a %s for that.", field),
	}
}

func storeFailure(intent Intent, op string, err error) Result {
	slog.Error("store call failed", "op", op, "error", err)
	metrics.Errors.WithLabelValues("store", op).Inc()
	return Result{
		Intent:  intent,
		Success: false,
		Kind:    ErrKindStoreFailure,
		Message: fmt.Sprintf("Saving failed during %s. Please try again.", strings.ReplaceAll(op, "_", " ")),
	}
}
