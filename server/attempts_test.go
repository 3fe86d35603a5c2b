package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttemptTracker(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := newAttemptTracker(3, 10*time.Minute, 5*time.Minute)

	_, blocked := tracker.Fail("Ana", now)
	require.False(t, blocked)
	// Outside the window the first failure no longer counts
	_, blocked = tracker.Fail("ana", now.Add(11*time.Minute))
	require.False(t, blocked)
	_, blocked = tracker.Fail(" ANA ", now.Add(12*time.Minute))
	require.False(t, blocked)

	until, blocked := tracker.Fail("ana", now.Add(13*time.Minute))
	require.True(t, blocked)
	require.Equal(t, now.Add(18*time.Minute), until)

	got, blocked := tracker.BlockedUntil("ana", now.Add(14*time.Minute))
	require.True(t, blocked)
	require.Equal(t, until, got)

	_, blocked = tracker.BlockedUntil("ana", until)
	require.False(t, blocked)

	_, _ = tracker.Fail("ana", until)
	_, _ = tracker.Fail("ana", until)
	tracker.Reset("ana")
	_, blocked = tracker.Fail("ana", until)
	require.False(t, blocked)
}
