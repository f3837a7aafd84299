package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore counts calls so tests can assert the exactly-one-store-call
// contract.
type fakeStore struct {
	calls     int
	lastTask  TaskPayload
	lastNote  NotePayload
	lastEvent EventPayload
	lastQuery SearchPayload
	err       error
	hits      []SearchHit
}

func (f *fakeStore) CreateTask(_ context.Context, _ string, p TaskPayload) (string, error) {
	f.calls++
	f.lastTask = p
	return "task-1", f.err
}

func (f *fakeStore) CreateNote(_ context.Context, _ string, p NotePayload) (string, error) {
	f.calls++
	f.lastNote = p
	return "note-1", f.err
}

func (f *fakeStore) CreateEvent(_ context.Context, _ string, p EventPayload) (string, error) {
	f.calls++
	f.lastEvent = p
	return "event-1", f.err
}

func (f *fakeStore) Search(_ context.Context, _ string, p SearchPayload) ([]SearchHit, error) {
	f.calls++
	f.lastQuery = p
	return f.hits, f.err
}

type fakeNav struct {
	paths []string
}

func (f *fakeNav) Navigate(path string) { f.paths = append(f.paths, path) }

func newTestRouter(store *fakeStore, nav Navigator) *Router {
	r := NewRouter(store, nav)
	r.now = func() time.Time { return testNow }
	return r
}

func TestCreateTaskDefaults(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateTask,
		Data:   map[string]any{"title": "buy milk"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "task-1", res.SideEffectRef)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, PriorityMedium, store.lastTask.Priority)
	assert.Equal(t, GTDNext, store.lastTask.GTDStatus)
	assert.Nil(t, store.lastTask.Deadline)
}

func TestCreateTaskWithDeadline(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateTask,
		Data: map[string]any{
			"title":      "file taxes",
			"priority":   "HIGH",
			"gtd_status": "now",
			"deadline":   "tomorrow",
		},
	})

	require.True(t, res.Success)
	require.NotNil(t, store.lastTask.Deadline)
	assert.Equal(t, PriorityHigh, store.lastTask.Priority)
	assert.Equal(t, GTDNow, store.lastTask.GTDStatus)
	want := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.Local)
	assert.True(t, store.lastTask.Deadline.Equal(want))
}

func TestCreateTaskMissingTitle(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateTask,
		Data:   map[string]any{"description": "no title here"},
	})

	require.False(t, res.Success)
	assert.Equal(t, ErrKindMissingField, res.Kind)
	assert.Equal(t, "title", res.Field)
	assert.Equal(t, 0, store.calls, "no store call on validation failure")
}

func TestCreateNoteNeedsTitleOrContent(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateNote,
		Data:   map[string]any{"content": "remember the milk"},
	})
	require.True(t, res.Success)
	assert.Equal(t, "remember the milk", store.lastNote.Content)

	res = r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateNote,
		Data:   map[string]any{},
	})
	require.False(t, res.Success)
	assert.Equal(t, ErrKindMissingField, res.Kind)
	assert.Equal(t, 1, store.calls)
}

func TestCreateEventResolvesStart(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateEvent,
		Data:   map[string]any{"title": "dentist", "date": "tomorrow", "time": "3pm"},
	})

	require.True(t, res.Success)
	want := time.Date(2025, time.March, 11, 15, 0, 0, 0, time.Local)
	assert.True(t, store.lastEvent.StartsAt.Equal(want))
}

func TestNavigate(t *testing.T) {
	nav := &fakeNav{}
	store := &fakeStore{}
	r := newTestRouter(store, nav)

	tests := []struct {
		destination string
		path        string
	}{
		{"dashboard", "/dashboard"},
		{"home", "/dashboard"},
		{"Calendar", "/calendar"},
		{"  tasks  ", "/tasks"},
		{"automations", "/automations"},
	}
	for _, tt := range tests {
		res := r.Execute(context.Background(), "u1", Interpreted{
			Intent: IntentNavigate,
			Data:   map[string]any{"destination": tt.destination},
		})
		require.True(t, res.Success, "destination %q", tt.destination)
		assert.Equal(t, tt.path, res.SideEffectRef)
	}
	assert.Equal(t, 0, store.calls, "navigation never touches the store")
	assert.Len(t, nav.paths, len(tests))
}

func TestNavigateUnknownDestination(t *testing.T) {
	nav := &fakeNav{}
	r := newTestRouter(&fakeStore{}, nav)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentNavigate,
		Data:   map[string]any{"destination": "the moon"},
	})

	require.False(t, res.Success)
	assert.Equal(t, ErrKindUnknownDestination, res.Kind)
	assert.Empty(t, nav.paths)
}

func TestSearch(t *testing.T) {
	store := &fakeStore{hits: []SearchHit{{Kind: "task", Ref: "task-1", Title: "buy milk"}}}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentSearch,
		Data:   map[string]any{"query": "milk", "scope": "everything"},
	})

	require.True(t, res.Success)
	assert.Len(t, res.Hits, 1)
	assert.Equal(t, "all", store.lastQuery.Scope, "unknown scope falls back to all")
}

func TestStoreFailureSurfaced(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent: IntentCreateTask,
		Data:   map[string]any{"title": "doomed"},
	})

	require.False(t, res.Success)
	assert.Equal(t, ErrKindStoreFailure, res.Kind)
	assert.Equal(t, 1, store.calls)
}

func TestGeneralIntentEchoesResponse(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil)

	res := r.Execute(context.Background(), "u1", Interpreted{
		Intent:   IntentGeneral,
		Response: "Hello there!",
	})

	require.True(t, res.Success)
	assert.Equal(t, "Hello there!", res.Message)
	assert.Equal(t, 0, store.calls)
}
