package sync

import (
	"context"
	"errors"
	"sort"
	gosync "sync"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
)

// mockStore is a minimal in-memory store for backup tests.
type mockStore struct {
	mu      gosync.Mutex
	events  map[string]*model.Event
	scanErr error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{events: make(map[string]*model.Event)}
}

func (m *mockStore) add(events ...*model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.events[e.ID] = e
	}
}

func (m *mockStore) sorted() []*model.Event {
	out := make([]*model.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *mockStore) QueryEvents(context.Context, model.Filter) ([]*model.Event, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) CountEvents(context.Context, model.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *mockStore) InsertEvent(_ context.Context, e *model.Event) (store.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return store.Duplicate, nil
	}
	m.events[e.ID] = e
	return store.Inserted, nil
}

func (m *mockStore) DeleteEvent(_ context.Context, id, author string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok && e.PubKey == author {
		delete(m.events, id)
		return 1, nil
	}
	return 0, nil
}

func (m *mockStore) ScanEvents(_ context.Context, fn func(*model.Event) error) error {
	m.mu.Lock()
	events := m.sorted()
	scanErr := m.scanErr
	m.mu.Unlock()

	if scanErr != nil {
		return scanErr
	}
	for _, e := range events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) Close() error { return nil }
