package datastore

import (
	"context"
	"sync"
)

// MemoryStore プロセス内メモリのストア（開発・テスト用）
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
	// FailWith makes Stream return this error, to simulate an unreachable store.
	FailWith error
}

// NewMemoryStore returns a store pre-filled with the given collections.
func NewMemoryStore(seed map[string][]Document) *MemoryStore {
	s := &MemoryStore{collections: make(map[string][]Document, len(seed))}
	for name, docs := range seed {
		s.collections[name] = cloneDocuments(docs)
	}
	return s
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Stream(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	return cloneDocuments(s.collections[collection]), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection string, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], cloneDocuments(docs)...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		c := make(Document, len(doc))
		for k, v := range doc {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
