package verification

import (
	"sync"

	"github.com/haulaway/authcore/internal/authcore/domain"
)

// Store is the injected session registry. The default is process-local memory;
// a multi-instance deployment can swap in a shared backing store without
// touching the manager's call sites.
type Store interface {
	Put(session domain.VerificationSession)
	Get(id string) (domain.VerificationSession, bool)
	Delete(id string)

	// Snapshot returns a copy of all live sessions, for the background sweep.
	Snapshot() []domain.VerificationSession
}

// memoryStore is a mutex-guarded map. Sessions are stored by value so a
// deleted session can never be observed half-updated.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.VerificationSession
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]domain.VerificationSession)}
}

func (m *memoryStore) Put(session domain.VerificationSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *memoryStore) Get(id string) (domain.VerificationSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *memoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *memoryStore) Snapshot() []domain.VerificationSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.VerificationSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
