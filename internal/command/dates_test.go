package command

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, time.March, 10, 14, 37, 0, 0, time.Local) // Monday afternoon

func TestResolveDate(t *testing.T) {
	midnight := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.Local)

	tests := []struct {
		token string
		want  time.Time
		ok    bool
	}{
		{"today", midnight, true},
		{"Today", midnight, true},
		{"tomorrow", midnight.AddDate(0, 0, 1), true},
		{"next week", midnight.AddDate(0, 0, 7), true},
		{"2025-04-01", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.Local), true},
		{"someday", midnight, false},
		{"", midnight, false},
	}
	for _, tt := range tests {
		got, ok := ResolveDate(tt.token, testNow)
		if ok != tt.ok {
			t.Errorf("ResolveDate(%q) ok = %v, want %v", tt.token, ok, tt.ok)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ResolveDate(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestResolveClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		ok           bool
	}{
		{"3pm", 15, 0, true},
		{"3:30pm", 15, 30, true},
		{"3:30 pm", 15, 30, true},
		{"12pm", 12, 0, true},
		{"12am", 0, 0, true},
		{"9 AM", 9, 0, true},
		{"15:00", 15, 0, true},
		{"15", 15, 0, true},
		{"0:05", 0, 5, true},
		{"25:00", 0, 0, false},
		{"13pm", 0, 0, false},
		{"3:75", 0, 0, false},
		{"noonish", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		hour, minute, ok := ResolveClock(tt.in)
		if ok != tt.ok || hour != tt.hour || minute != tt.minute {
			t.Errorf("ResolveClock(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.in, hour, minute, ok, tt.hour, tt.minute, tt.ok)
		}
	}
}

func TestResolveStart(t *testing.T) {
	t.Run("tomorrow at 3pm", func(t *testing.T) {
		got := ResolveStart("tomorrow", "3pm", testNow)
		want := time.Date(2025, time.March, 11, 15, 0, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("missing time defaults to current time of day", func(t *testing.T) {
		got := ResolveStart("tomorrow", "", testNow)
		want := time.Date(2025, time.March, 11, 14, 37, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("unparseable time defaults to current time of day", func(t *testing.T) {
		got := ResolveStart("today", "nonsense", testNow)
		want := time.Date(2025, time.March, 10, 14, 37, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
}
