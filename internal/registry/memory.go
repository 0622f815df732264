package registry

import (
	"context"
	"sync"

	"portseal/internal/domain"
)

// Options tune claim behaviour shared by every backend.
type Options struct {
	// RequireOneTimeKey makes Claim fail with ErrPreKeyExhausted instead of
	// returning a bundle without a one-time pre-key.
	RequireOneTimeKey bool
}

type memoryEntry struct {
	bundle domain.PublishedBundle
	queue  []domain.OneTimePreKeyPublic
	seen   map[domain.OneTimePreKeyID]struct{}
}

// Memory is an in-process registry.
type Memory struct {
	mu      sync.Mutex
	opts    Options
	entries map[domain.PrincipalID]*memoryEntry
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:    opts,
		entries: make(map[domain.PrincipalID]*memoryEntry),
	}
}

var _ domain.PreKeyRegistry = (*Memory)(nil)

// Publish replaces the signed part of the principal's bundle and queues any
// one-time pre-keys it has not seen before. Ids already handed out are never
// queued again.
func (m *Memory) Publish(_ context.Context, b domain.PublishedBundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Principal == "" {
		return errNoPrincipal
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[b.Principal]
	if !ok {
		e = &memoryEntry{seen: make(map[domain.OneTimePreKeyID]struct{})}
		m.entries[b.Principal] = e
	}
	for _, opk := range b.OneTimePreKeys {
		if _, dup := e.seen[opk.ID]; dup {
			continue
		}
		e.seen[opk.ID] = struct{}{}
		e.queue = append(e.queue, opk)
	}
	b.OneTimePreKeys = nil
	e.bundle = b
	return nil
}

func (m *Memory) Claim(_ context.Context, principal domain.PrincipalID) (domain.PreKeyBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[principal]
	if !ok {
		return domain.PreKeyBundle{}, domain.ErrPrincipalNotFound
	}
	if len(e.queue) == 0 {
		if m.opts.RequireOneTimeKey {
			return domain.PreKeyBundle{}, domain.ErrPreKeyExhausted
		}
		return e.bundle.Claim(nil), nil
	}
	opk := e.queue[0]
	e.queue = e.queue[1:]
	return e.bundle.Claim(&opk), nil
}

// Remaining reports how many one-time pre-keys are left for principal.
func (m *Memory) Remaining(principal domain.PrincipalID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[principal]; ok {
		return len(e.queue)
	}
	return 0
}
