package rrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekly(t *testing.T) {
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=WE;BYHOUR=9;BYMINUTE=0", Weekly(time.Wednesday, 9, 0))
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=SU;BYHOUR=21;BYMINUTE=30", Weekly(time.Sunday, 21, 30))
}

func TestNextOccurrenceWeekly(t *testing.T) {
	// Monday 2025-06-02 08:00 local.
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local)
	require.Equal(t, time.Monday, now.Weekday())

	rule := Weekly(time.Wednesday, 9, 0)
	next, err := NextOccurrence(rule, now, now)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Wednesday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, time.Date(2025, 6, 4, 9, 0, 0, 0, time.Local), *next)

	// Advancing past a fire lands exactly one week later.
	after, err := NextOccurrenceStrict(rule, now, *next)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, next.AddDate(0, 0, 7), *after)
}

func TestNextOccurrenceBadRule(t *testing.T) {
	_, err := NextOccurrence("FREQ=NOPE", time.Now(), time.Now())
	assert.Error(t, err)
}
