package breaker

import (
	"context"
	"sort"
	"sync"
)

// Manager hands out named breakers so every caller hitting the same
// service shares one circuit.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
	opts     []Option
}

// NewManager creates a manager that builds breakers from cfg. The
// options are applied to every breaker it creates.
func NewManager(cfg Config, opts ...Option) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		opts:     opts,
	}
}

// GetOrCreate returns the breaker registered under name, creating it
// on first use.
func (m *Manager) GetOrCreate(name string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()

	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok = m.breakers[name]; ok {
		return b
	}

	b = New(name, m.cfg, m.opts...)
	m.breakers[name] = b

	return b
}

// Get returns the breaker registered under name, or nil.
func (m *Manager) Get(name string) *Breaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[name]
}

// Call runs op under the breaker for the named service, creating the
// breaker on first use.
func (m *Manager) Call(ctx context.Context, name string, op func(context.Context) error) error {
	return m.GetOrCreate(name).Call(ctx, op)
}

// ForceOpen trips the named breaker. It reports whether the breaker
// exists.
func (m *Manager) ForceOpen(name string) bool {
	if b := m.Get(name); b != nil {
		b.ForceOpen()
		return true
	}
	return false
}

// ForceClose returns the named breaker to normal operation. It reports
// whether the breaker exists.
func (m *Manager) ForceClose(name string) bool {
	if b := m.Get(name); b != nil {
		b.ForceClose()
		return true
	}
	return false
}

// Snapshots reports the state of every registered breaker, sorted by
// name for stable output.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		breakers = append(breakers, b)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// ResetAll restores every registered breaker to a clean slate.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.breakers {
		b.Reset()
	}
}
