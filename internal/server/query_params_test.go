package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeWindowExpandsBareDates(t *testing.T) {
	window, _, err := parseTimeWindow("created_from", "2024-03-01", "created_to", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, window.From)
	require.NotNil(t, window.To)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *window.From)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *window.To)
}

func TestParseTimeWindowNamesBadField(t *testing.T) {
	_, field, err := parseTimeWindow("start_at", "2024-03-01T10:00:00Z", "end_at", "yesterday")
	require.Error(t, err)
	assert.Equal(t, "end_at", field)

	_, field, err = parseTimeWindow("start_at", "2024-03-02", "end_at", "2024-03-01")
	require.Error(t, err)
	assert.Equal(t, "end_at", field)
}

func TestParseTimeWindowOpenBounds(t *testing.T) {
	window, _, err := parseTimeWindow("from", "", "to", "")
	require.NoError(t, err)
	assert.Nil(t, window.From)
	assert.Nil(t, window.To)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
