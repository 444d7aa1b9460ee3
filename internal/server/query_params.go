package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidTime = errors.New("invalid_time")

// parseOptionalBool returns nil for an absent filter so "not set" and
// "false" stay distinct.
func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date. A bare date resolves to
// the start of that UTC day, or to its last nanosecond when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	day, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, errInvalidTime
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

// timeWindow is an inclusive created_at filter shared by the list endpoints.
type timeWindow struct {
	From *time.Time
	To   *time.Time
}

// parseTimeWindow reads both bounds. On failure it names the query field at
// fault so the handler can report it.
func parseTimeWindow(fromField, from, toField, to string) (timeWindow, string, error) {
	start, err := parseOptionalTime(from, false)
	if err != nil {
		return timeWindow{}, fromField, err
	}
	end, err := parseOptionalTime(to, true)
	if err != nil {
		return timeWindow{}, toField, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return timeWindow{}, toField, errInvalidTime
	}
	return timeWindow{From: start, To: end}, "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
