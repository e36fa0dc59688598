package vectorstore

import (
	"context"
	"sync"

	"ragchat/internal/model"
)

// MemoryIndex is an in-process Index with the same ordering and
// idempotency semantics as the MySQL implementation. It backs tests and
// single-node setups without a database.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks []model.Chunk
	nextID uint
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{nextID: 1}
}

func (s *MemoryIndex) Add(_ context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.ID = s.nextID
		s.nextID++
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *MemoryIndex) Query(_ context.Context, embedding []float32, k int) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rank(s.chunks, embedding, k), nil
}

func (s *MemoryIndex) DeleteByFileID(_ context.Context, fileID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	var removed int64
	for _, c := range s.chunks {
		if c.DocumentID == fileID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return removed, nil
}

func (s *MemoryIndex) GetByFileID(_ context.Context, fileID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uint
	for _, c := range s.chunks {
		if c.DocumentID == fileID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
