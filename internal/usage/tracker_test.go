package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBucket(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day.
	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2026, 8, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-02", DayBucket(at))
}

func TestMemoryTrackerRollsOverAtMidnightUTC(t *testing.T) {
	now := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
	tracker := NewMemoryTracker(func() time.Time { return now })
	ctx := context.Background()

	n, err := tracker.Record(ctx, KeySends, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = tracker.Count(ctx, KeySends)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Two minutes later it is a new UTC day and the count resets.
	now = now.Add(2 * time.Minute)
	n, err = tracker.Count(ctx, KeySends)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
