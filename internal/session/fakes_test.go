package session

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
)

// fakeConn is an in-memory Conn. Closing in ends the session with io.EOF.
type fakeConn struct {
	in  chan []byte
	out chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:  make(chan []byte, 32),
		out: make(chan []byte, 128),
	}
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) WriteMessage(ctx context.Context, data []byte) error {
	select {
	case c.out <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:40000" }

// memStore is a minimal in-memory store.Store. It matches filters on ids,
// authors and kinds only.
type memStore struct {
	mu     sync.Mutex
	events map[string]*model.Event

	insertErr    error
	block        chan struct{} // QueryEvents waits for this to close when non-nil
	panicOnCount bool
	panicOnQuery bool
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{events: make(map[string]*model.Event)}
}

func (m *memStore) get(id string) (*model.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	return e, ok
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) put(e *model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

func (m *memStore) matching(f model.Filter) []*model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Event
	for _, e := range m.events {
		if len(f.IDs) > 0 && !contains(f.IDs, e.ID) {
			continue
		}
		if len(f.Authors) > 0 && !contains(f.Authors, e.PubKey) {
			continue
		}
		if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit := model.DefaultLimits.Clamp(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) QueryEvents(ctx context.Context, f model.Filter) ([]*model.Event, error) {
	if m.panicOnQuery {
		panic("query exploded")
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.matching(f), nil
}

func (m *memStore) CountEvents(_ context.Context, f model.Filter) (int64, error) {
	if m.panicOnCount {
		panic("count exploded")
	}
	return int64(len(m.matching(f))), nil
}

func (m *memStore) InsertEvent(_ context.Context, e *model.Event) (store.InsertResult, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return store.Duplicate, nil
	}
	cp := *e
	m.events[e.ID] = &cp
	return store.Inserted, nil
}

func (m *memStore) DeleteEvent(_ context.Context, id, author string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok && e.PubKey == author {
		delete(m.events, id)
		return 1, nil
	}
	return 0, nil
}

func (m *memStore) ScanEvents(_ context.Context, fn func(*model.Event) error) error {
	for _, e := range m.matching(model.Filter{}) {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
