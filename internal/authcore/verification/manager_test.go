package verification

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts Options) (*Manager, *time.Time) {
	t.Helper()

	m, err := NewManager(NewMemoryStore(), slog.Default(), opts)
	require.NoError(t, err)

	current := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	return m, &current
}

func TestNewManagerRejectsIdleNotBelowTTL(t *testing.T) {
	t.Parallel()

	_, err := NewManager(NewMemoryStore(), slog.Default(), Options{
		CodeTTL:     time.Minute,
		IdleTimeout: time.Minute,
	})
	require.ErrorIs(t, err, ErrIdleNotBelowTTL)
}

func TestGetSessionWhileLive(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, ok := m.GetSession(id)
	require.True(t, ok)
	require.Equal(t, "+61400000001", session.Identifier)
	require.True(t, session.IsActive)
	require.NotContains(t, session.CodeHash, "482913")
}

func TestIdleEvictionBeforeTTL(t *testing.T) {
	t.Parallel()

	m, current := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	// Idle window (2m) exceeded while the code TTL (10m) has plenty left.
	*current = current.Add(3 * time.Minute)

	_, ok := m.GetSession(id)
	require.False(t, ok)

	// Delete-on-read: the session must not come back.
	*current = current.Add(-3 * time.Minute)
	_, ok = m.GetSession(id)
	require.False(t, ok)
}

func TestTTLEvictionDespiteActivity(t *testing.T) {
	t.Parallel()

	m, current := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	// Keep the idle clock fresh the whole way to TTL.
	for range 11 {
		*current = current.Add(time.Minute)
		m.UpdateActivity(id)
	}

	_, ok := m.GetSession(id)
	require.False(t, ok)
}

func TestUpdateActivityExtendsIdleLife(t *testing.T) {
	t.Parallel()

	m, current := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	*current = current.Add(90 * time.Second)
	require.True(t, m.UpdateActivity(id))

	*current = current.Add(90 * time.Second)
	_, ok := m.GetSession(id)
	require.True(t, ok, "ping should have reset the idle clock")

	require.False(t, m.UpdateActivity("unknown-id"))
}

func TestVerifyCodeSingleUse(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	t.Run("wrong code keeps the session", func(t *testing.T) {
		identifier, err := m.VerifyCode(id, "000000")
		require.ErrorIs(t, err, ErrCodeMismatch)
		require.Empty(t, identifier)

		_, ok := m.GetSession(id)
		require.True(t, ok)
	})

	t.Run("correct code consumes the session", func(t *testing.T) {
		identifier, err := m.VerifyCode(id, "482913")
		require.NoError(t, err)
		require.Equal(t, "+61400000001", identifier)

		_, ok := m.GetSession(id)
		require.False(t, ok)

		_, err = m.VerifyCode(id, "482913")
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestVerifyCodeOnExpiredSession(t *testing.T) {
	t.Parallel()

	m, current := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	*current = current.Add(11 * time.Minute)

	// Eviction applies before comparison: the correct code on a dead session
	// must read as not-found, never as a mismatch.
	_, err = m.VerifyCode(id, "482913")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, Options{})

	id, err := m.CreateSession("+61400000001", "482913")
	require.NoError(t, err)

	m.DeleteSession(id)
	_, ok := m.GetSession(id)
	require.False(t, ok)
}

func TestSweepPurgesExpired(t *testing.T) {
	t.Parallel()

	m, current := newTestManager(t, Options{})

	expired, err := m.CreateSession("+61400000001", "111111")
	require.NoError(t, err)

	*current = current.Add(5 * time.Minute)

	live, err := m.CreateSession("+61400000002", "222222")
	require.NoError(t, err)

	// The first session is past its idle window; the second is fresh.
	m.sweep()

	_, ok := m.store.Get(expired)
	require.False(t, ok)
	_, ok = m.store.Get(live)
	require.True(t, ok)
}

func TestSweepLifecycle(t *testing.T) {
	t.Parallel()

	m, err := NewManager(NewMemoryStore(), slog.Default(), Options{
		SweepInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
