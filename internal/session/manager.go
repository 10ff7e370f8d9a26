package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/duckmesh/tabula/internal/query"
)

const DefaultTenant = "default"

// StoreFactory opens a fresh relational store for a new session.
type StoreFactory func(ctx context.Context) (query.Store, error)

// Manager keeps one Session per tenant, created on first use. Opening a
// session happens outside the registry lock, so a slow schema backend only
// delays the tenant being opened.
type Manager struct {
	newStore StoreFactory
	deps     Deps

	mu       sync.Mutex
	sessions map[string]*tenantEntry
}

type tenantEntry struct {
	// ready is closed once the open attempt finished.
	ready   chan struct{}
	session *Session
	err     error
}

func NewManager(newStore StoreFactory, deps Deps) *Manager {
	return &Manager{newStore: newStore, deps: deps, sessions: map[string]*tenantEntry{}}
}

func (m *Manager) Get(ctx context.Context, tenantID string) (*Session, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	m.mu.Lock()
	entry, ok := m.sessions[tenantID]
	if !ok {
		entry = &tenantEntry{ready: make(chan struct{})}
		m.sessions[tenantID] = entry
		m.mu.Unlock()
		m.open(ctx, tenantID, entry)
		return entry.session, entry.err
	}
	m.mu.Unlock()

	select {
	case <-entry.ready:
		return entry.session, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) open(ctx context.Context, tenantID string, entry *tenantEntry) {
	defer close(entry.ready)

	store, err := m.newStore(ctx)
	if err != nil {
		entry.err = fmt.Errorf("open store for tenant %q: %w", tenantID, err)
	} else if entry.session, err = New(ctx, tenantID, store, m.deps); err != nil {
		_ = store.Close()
		entry.err = err
	}
	if entry.err == nil {
		return
	}

	// A failed open is not cached; the next request tries again.
	m.mu.Lock()
	if m.sessions[tenantID] == entry {
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()
}

// Tenants lists tenants with an open session.
func (m *Manager) Tenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenants := make([]string, 0, len(m.sessions))
	for tenantID, entry := range m.sessions {
		select {
		case <-entry.ready:
			if entry.err == nil {
				tenants = append(tenants, tenantID)
			}
		default:
		}
	}
	return tenants
}

// Close closes every session, waiting for sessions still being opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	entries := m.sessions
	m.sessions = map[string]*tenantEntry{}
	m.mu.Unlock()

	var errs []error
	for tenantID, entry := range entries {
		<-entry.ready
		if entry.err != nil {
			continue
		}
		if err := entry.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %q: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}
