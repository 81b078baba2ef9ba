package threat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haulaway/authcore/internal/authcore/domain"
)

func TestEventLogBoundedOverwrite(t *testing.T) {
	t.Parallel()

	l := NewEventLog(4)

	for i := range 6 {
		l.Append(domain.SecurityEvent{Details: fmt.Sprintf("event-%d", i)})
	}

	recent := l.Recent(10)
	require.Len(t, recent, 4, "retention stays at capacity")

	// Newest first; the two oldest were overwritten.
	require.Equal(t, "event-5", recent[0].Details)
	require.Equal(t, "event-2", recent[3].Details)
}

func TestEventLogCountByIP(t *testing.T) {
	t.Parallel()

	l := NewEventLog(16)
	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	l.Append(domain.SecurityEvent{IP: "203.0.113.7", Timestamp: now.Add(-30 * time.Second)})
	l.Append(domain.SecurityEvent{IP: "203.0.113.7", Timestamp: now.Add(-90 * time.Second)})
	l.Append(domain.SecurityEvent{IP: "198.51.100.9", Timestamp: now.Add(-10 * time.Second)})

	require.Equal(t, 1, l.CountByIP("203.0.113.7", now.Add(-time.Minute)))
	require.Equal(t, 2, l.CountByIP("203.0.113.7", now.Add(-2*time.Minute)))
	require.Equal(t, 0, l.CountByIP("192.0.2.1", now.Add(-time.Minute)))
}

func TestEventLogRecentPartial(t *testing.T) {
	t.Parallel()

	l := NewEventLog(8)
	l.Append(domain.SecurityEvent{Details: "a"})
	l.Append(domain.SecurityEvent{Details: "b"})

	recent := l.Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, "b", recent[0].Details)
}
