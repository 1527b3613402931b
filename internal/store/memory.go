package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dannyrandall/conferences/internal/conference"
)

// Memory is a Backend that lives for the life of the process.
type Memory struct {
	mu    sync.RWMutex
	items map[string]conference.Conference
	// FailApply, when set, is returned by Apply without writing anything.
	FailApply error
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]conference.Conference)}
}

func (m *Memory) Load(_ context.Context, key string) (conference.Conference, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.items[key]
	return c, ok, nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Apply(_ context.Context, _ string, writes map[string]conference.Conference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailApply != nil {
		return m.FailApply
	}
	for k, c := range writes {
		m.items[k] = c
	}
	return nil
}

func (m *Memory) Close() error { return nil }
