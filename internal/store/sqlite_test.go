package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sera-labs/voicekit/internal/command"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "voicekit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deadline := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.Local)
	ref, err := s.CreateTask(ctx, "u1", command.TaskPayload{
		Title:     "buy milk",
		Priority:  command.PriorityHigh,
		GTDStatus: command.GTDNow,
		Deadline:  &deadline,
	})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	_, err = s.CreateTask(ctx, "u2", command.TaskPayload{
		Title: "someone else's task", Priority: command.PriorityMedium, GTDStatus: command.GTDNext,
	})
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1, "tasks are scoped per user")
	assert.Equal(t, "buy milk", tasks[0].Title)
	assert.Equal(t, "high", tasks[0].Priority)
	assert.Equal(t, "NOW", tasks[0].GTDStatus)
	require.NotNil(t, tasks[0].Deadline)
	assert.Equal(t, deadline.Unix(), tasks[0].Deadline.Unix())
}

func TestCreateAndListNotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ref, err := s.CreateNote(ctx, "u1", command.NotePayload{Content: "remember the milk"})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	notes, err := s.ListNotes(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "remember the milk", notes[0].Content)
}

func TestCreateAndListEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	later := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	sooner := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	_, err := s.CreateEvent(ctx, "u1", command.EventPayload{Title: "offsite", StartsAt: later})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, "u1", command.EventPayload{Title: "dentist", StartsAt: sooner})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "dentist", events[0].Title, "events ordered by start time")
	assert.Equal(t, sooner.Unix(), events[0].StartsAt.Unix())
}

func TestSearchScopes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, "u1", command.TaskPayload{Title: "buy milk", Priority: command.PriorityMedium, GTDStatus: command.GTDNext})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, "u1", command.NotePayload{Title: "milk brands", Content: "oat, whole"})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, "u1", command.EventPayload{Title: "milk tasting", StartsAt: time.Now()})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, "u1", command.TaskPayload{Title: "unrelated", Priority: command.PriorityMedium, GTDStatus: command.GTDNext})
	require.NoError(t, err)

	hits, err := s.Search(ctx, "u1", command.SearchPayload{Query: "milk", Scope: "all"})
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = s.Search(ctx, "u1", command.SearchPayload{Query: "milk", Scope: "notes"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "note", hits[0].Kind)

	hits, err = s.Search(ctx, "u2", command.SearchPayload{Query: "milk", Scope: "all"})
	require.NoError(t, err)
	assert.Empty(t, hits, "search is scoped per user")
}

func TestCommandHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordCommand(ctx, CommandRecord{
		UserID:        "u1",
		Intent:        "create_task",
		Transcript:    "add a task to buy milk",
		Confidence:    0.92,
		Success:       true,
		SideEffectRef: "task-1",
	})
	require.NoError(t, err)
	err = s.RecordCommand(ctx, CommandRecord{
		UserID:     "u1",
		Intent:     "navigate",
		Transcript: "open narnia",
		Confidence: 0.95,
		Success:    false,
		ErrorKind:  "unknown_destination",
	})
	require.NoError(t, err)

	recs, err := s.ListCommandHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byIntent := map[string]CommandRecord{}
	for _, r := range recs {
		byIntent[r.Intent] = r
	}
	assert.True(t, byIntent["create_task"].Success)
	assert.Equal(t, "task-1", byIntent["create_task"].SideEffectRef)
	assert.False(t, byIntent["navigate"].Success)
	assert.Equal(t, "unknown_destination", byIntent["navigate"].ErrorKind)
}
