package threat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
)

// BlockList defaults.
const (
	DefaultBlockTTL        = 5 * time.Minute
	DefaultUnblockInterval = 30 * time.Second
)

// BlockList is the set of temporarily banned IPs. Every entry carries a
// deterministic expiry: the automated path can never produce an indefinite
// block. Reads expire lazily; a background worker additionally prunes so
// entries disappear even when the attacker stops sending.
type BlockList struct {
	mu      sync.Mutex
	entries map[string]domain.BlockedIPEntry

	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewBlockList(ttl, interval time.Duration, logger *slog.Logger) *BlockList {
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	if interval <= 0 {
		interval = DefaultUnblockInterval
	}
	return &BlockList{
		entries:  make(map[string]domain.BlockedIPEntry),
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Block bans the IP for the configured TTL. Blocking an already-blocked IP
// restarts the clock.
func (b *BlockList) Block(ip, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[ip] = domain.BlockedIPEntry{
		IP:        ip,
		Reason:    reason,
		ExpiresAt: b.now().Add(b.ttl),
	}
	b.logger.Warn("ip blocked", "ip", ip, "reason", reason, "ttl", b.ttl)
}

// IsBlocked reports whether the IP is currently banned, removing the entry
// when its expiry has passed.
func (b *BlockList) IsBlocked(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[ip]
	if !ok {
		return false
	}
	if b.now().After(entry.ExpiresAt) {
		delete(b.entries, ip)
		return false
	}
	return true
}

// Entries returns a copy of the current block list, for observability.
func (b *BlockList) Entries() []domain.BlockedIPEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BlockedIPEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	return out
}

// Start launches the auto-unblock worker.
func (b *BlockList) Start() {
	go b.run()
	b.logger.Info("ip auto-unblock started", "interval", b.interval)
}

// Stop shuts the worker down, blocking until it exits.
func (b *BlockList) Stop() {
	close(b.stopCh)
	<-b.doneCh
	b.logger.Info("ip auto-unblock stopped")
}

func (b *BlockList) run() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.stopCh:
			return
		}
	}
}

func (b *BlockList) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for ip, entry := range b.entries {
		if now.After(entry.ExpiresAt) {
			delete(b.entries, ip)
			b.logger.Debug("ip unblocked", "ip", ip)
		}
	}
}
