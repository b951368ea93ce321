package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormaliseIDs(t *testing.T) {
	require.Nil(t, normaliseIDs(nil))
	require.Nil(t, normaliseIDs([]string{"", "  "}))
	require.Equal(t, []string{"a", "b"}, normaliseIDs([]string{" a", "b", "a", ""}))
}

func TestDayBoundaries(t *testing.T) {
	at := time.Date(2025, 3, 10, 15, 42, 7, 0, time.Local)

	start := startOfDay(at)
	require.Equal(t, 0, start.Hour())
	require.Equal(t, at.Day(), start.Day())

	end := endOfDay(at)
	require.Equal(t, 23, end.Hour())
	require.Equal(t, at.Day(), end.Day())
	require.True(t, end.After(at))
	require.True(t, end.Before(start.AddDate(0, 0, 1)))
}

func TestCalendarDaysUntil(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

	require.Zero(t, calendarDaysUntil(now, now))
	require.Zero(t, calendarDaysUntil(now, now.Add(-time.Hour)))
	require.Equal(t, 1, calendarDaysUntil(now, now.Add(time.Minute)))
	require.Equal(t, 1, calendarDaysUntil(now, now.Add(24*time.Hour)))
	require.Equal(t, 2, calendarDaysUntil(now, now.Add(25*time.Hour)))
	require.Equal(t, 3, calendarDaysUntil(now, now.Add(3*24*time.Hour)))
}
