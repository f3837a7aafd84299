package command

import (
	"strconv"
	"strings"
	"time"
)

// ResolveDate turns a relative token or ISO date into a local-midnight date.
// Supported tokens: today, tomorrow, next week. Anything else is parsed as
// an ISO date (2006-01-02).
func ResolveDate(token string, now time.Time) (time.Time, bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(strings.TrimSpace(token)) {
	case "", "today":
		return midnight, token != ""
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), true
	case "next week":
		return midnight.AddDate(0, 0, 7), true
	}

	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(token), now.Location())
	if err != nil {
		return midnight, false
	}
	return d, true
}

// ResolveClock parses a 12- or 24-hour time of day: "3pm", "3:30pm",
// "3:30 pm", "15:00", "15".
func ResolveClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	for _, suffix := range []string{"am", "pm", "a.m.", "p.m."} {
		if strings.HasSuffix(s, suffix) {
			meridiem = string(suffix[0])
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	hs, ms, found := strings.Cut(s, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, false
	}
	minute = 0
	if found {
		minute, err = strconv.Atoi(strings.TrimSpace(ms))
		if err != nil {
			return 0, 0, false
		}
	}

	switch meridiem {
	case "p":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, 0, false
		}
	}
	if minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ResolveStart combines a date token and a time token into an absolute start
// time in now's timezone. A missing or unparseable time defaults to the
// current time of day, so "tomorrow" alone means this time tomorrow.
func ResolveStart(dateTok, timeTok string, now time.Time) time.Time {
	date, _ := ResolveDate(dateTok, now)

	hour, minute, ok := ResolveClock(timeTok)
	if !ok {
		hour, minute = now.Hour(), now.Minute()
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, now.Location())
}
