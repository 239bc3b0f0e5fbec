package stats

import (
	"context"
	"github.com/puzpuzpuz/xsync/v3"
	"sync/atomic"
)

type inMemoryStore struct {
	counters *xsync.MapOf[string, *atomic.Int64]
}

func NewInMemoryStore() Store {
	return &inMemoryStore{counters: xsync.NewMapOf[string, *atomic.Int64]()}
}

func (m *inMemoryStore) Increment(_ context.Context, key string) error {
	counter, _ := m.counters.LoadOrCompute(key, func() *atomic.Int64 {
		return &atomic.Int64{}
	})
	counter.Add(1)
	return nil
}

func (m *inMemoryStore) Get(_ context.Context, key string) (int64, error) {
	if counter, ok := m.counters.Load(key); ok {
		return counter.Load(), nil
	}
	return 0, nil
}

func (m *inMemoryStore) Shutdown() {}
