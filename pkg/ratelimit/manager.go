package ratelimit

import (
	"sort"
	"sync"
)

// Manager hands out named limiters so every caller hitting the same
// service shares one set of buckets and windows.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	cfg      Config
	opts     []Option
}

// NewManager creates a manager that builds limiters from cfg. The
// options are applied to every limiter it creates.
func NewManager(cfg Config, opts ...Option) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		cfg:      cfg,
		opts:     opts,
	}
}

// GetOrCreate returns the limiter registered under name, creating it
// on first use.
func (m *Manager) GetOrCreate(name string) *Limiter {
	m.mu.RLock()
	l, ok := m.limiters[name]
	m.mu.RUnlock()

	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok = m.limiters[name]; ok {
		return l
	}

	l = New(name, m.cfg, m.opts...)
	m.limiters[name] = l

	return l
}

// Get returns the limiter registered under name, or nil.
func (m *Manager) Get(name string) *Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[name]
}

// Snapshots reports the state of every registered limiter, sorted by
// name for stable output.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	limiters := make([]*Limiter, 0, len(m.limiters))
	for _, l := range m.limiters {
		limiters = append(limiters, l)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(limiters))
	for _, l := range limiters {
		snaps = append(snaps, l.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// ResetAll restores every registered limiter to a clean slate.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.limiters {
		l.Reset()
	}
}
