package verification

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/pkg/cryptox"
	"github.com/haulaway/authcore/pkg/idx"
)

// Defaults for the two expiry clocks. The idle window must stay strictly
// shorter than the code TTL so an abandoned session dies early.
const (
	DefaultCodeTTL       = 10 * time.Minute
	DefaultIdleTimeout   = 2 * time.Minute
	DefaultSweepInterval = time.Minute
)

var (
	ErrIdleNotBelowTTL = errors.New("verification: idle timeout must be shorter than code TTL")

	// ErrSessionNotFound covers unknown, evicted and consumed sessions alike.
	ErrSessionNotFound = errors.New("verification: session not found")
	ErrCodeMismatch    = errors.New("verification: code mismatch")
)

// Options configure a Manager. Zero values fall back to the defaults.
type Options struct {
	CodeTTL       time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Manager is the registry of short-lived one-time-code sessions. Every
// session is single-use and bounded by two independent clocks: a fixed code
// TTL and an idle window refreshed on access. Reads after either expiry
// delete the entry and report not-found; nothing resurrects a dead session.
type Manager struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger

	codeTTL       time.Duration
	idleTimeout   time.Duration
	sweepInterval time.Duration

	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewManager(store Store, logger *slog.Logger, opts Options) (*Manager, error) {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.IdleTimeout >= opts.CodeTTL {
		return nil, ErrIdleNotBelowTTL
	}

	return &Manager{
		store:         store,
		logger:        logger,
		codeTTL:       opts.CodeTTL,
		idleTimeout:   opts.IdleTimeout,
		sweepInterval: opts.SweepInterval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// CreateSession registers a new session for identifier and returns its opaque
// id. The code is stored only as an argon2id hash.
func (m *Manager) CreateSession(identifier, code string) (string, error) {
	codeHash, err := cryptox.HashCode(code)
	if err != nil {
		return "", fmt.Errorf("verification: hash code: %w", err)
	}

	now := m.now()
	session := domain.VerificationSession{
		ID:         idx.New().String(),
		Identifier: identifier,
		CodeHash:   codeHash,
		CodeExpiry: now.Add(m.codeTTL),
		CreatedAt:  now,
		LastAccess: now,
		IsActive:   true,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Put(session)

	return session.ID, nil
}

// GetSession returns the live session for id, bumping its idle clock. Either
// expiry rule failing deletes the entry and reports not-found.
func (m *Manager) GetSession(id string) (domain.VerificationSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id string) (domain.VerificationSession, bool) {
	session, ok := m.store.Get(id)
	if !ok {
		return domain.VerificationSession{}, false
	}

	now := m.now()
	if now.After(session.CodeExpiry) || now.Sub(session.LastAccess) > m.idleTimeout {
		m.store.Delete(id)
		return domain.VerificationSession{}, false
	}

	session.LastAccess = now
	m.store.Put(session)
	return session, true
}

// UpdateActivity refreshes the idle clock without exposing the session, so a
// client "still here" ping can extend idle life. Returns false for unknown or
// evicted ids.
func (m *Manager) UpdateActivity(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.getLocked(id)
	return ok
}

// VerifyCode resolves the session (eviction rules apply first) and compares
// the code in constant time, all under one lock so a concurrent sweep cannot
// make an evicted session read as a mere mismatch. A match consumes the
// session and returns its identifier; a mismatch leaves it in place for
// another attempt.
func (m *Manager) VerifyCode(id, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.getLocked(id)
	if !ok {
		return "", ErrSessionNotFound
	}

	if err := cryptox.VerifyCode(code, session.CodeHash); err != nil {
		return "", ErrCodeMismatch
	}

	m.store.Delete(id)
	return session.Identifier, nil
}

// DeleteSession removes a session explicitly, e.g. after the client signals
// it navigated away.
func (m *Manager) DeleteSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Delete(id)
}

// Start launches the background sweep that purges TTL-expired sessions even
// when nobody reads them again, bounding memory under abandonment.
func (m *Manager) Start() {
	go m.run()
	m.logger.Info("verification sweep started", "interval", m.sweepInterval)
}

// Stop shuts the sweep down, blocking until the worker exits.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
	m.logger.Info("verification sweep stopped")
}

func (m *Manager) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var purged int
	for _, session := range m.store.Snapshot() {
		if now.After(session.CodeExpiry) || now.Sub(session.LastAccess) > m.idleTimeout {
			m.store.Delete(session.ID)
			purged++
		}
	}

	if purged > 0 {
		m.logger.Debug("verification sweep purged sessions", "count", purged)
	}
}
