package permissions

import (
	"context"
	"fmt"
	"sync"

	"github.com/backoffice/backoffice/internal/shared"
)

type mockRepository struct {
	mu      sync.Mutex
	rows    map[Config]Permission
	nextID  int64
	lookups int
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{rows: make(map[Config]Permission)}
}

func (m *mockRepository) FindByConfig(_ context.Context, cfg Config) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	p, ok := m.rows[cfg]
	if !ok {
		return Permission{}, fmt.Errorf("permission %s: %w", cfg, shared.ErrNotFound)
	}
	return p, nil
}

func (m *mockRepository) List(context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Permission
	for _, cfg := range Catalog() {
		if p, ok := m.rows[cfg]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) Upsert(_ context.Context, configs []Config) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, cfg := range configs {
		if _, ok := m.rows[cfg]; ok {
			continue
		}
		m.nextID++
		m.rows[cfg] = Permission{ID: m.nextID, Action: cfg.Action, Subject: cfg.Subject}
		inserted++
	}
	return inserted, nil
}
