package app

import (
	"context"
	"errors"
	"sync"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/vectorstore"
)

// fakeGenerator returns scripted results in call order. A nil error with
// empty text falls back to the default reply.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   int
	prompts [][]ai.ChatMessage
}

type fakeReply struct {
	text string
	err  error
}

func (g *fakeGenerator) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, messages)
	idx := g.calls
	g.calls++
	if idx >= len(g.replies) {
		return "default reply", nil
	}
	return g.replies[idx].text, g.replies[idx].err
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeEmbedder produces deterministic vectors derived from text length so
// similarity ordering is predictable in tests.
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(_ context.Context, _ ai.EmbeddingConfig, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)%7) + 1, 1, 0.5}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, _ ai.EmbeddingConfig, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(context.Background(), ai.EmbeddingConfig{}, t)
		out[i] = v
	}
	return out, nil
}

// fakeDocStore is an in-memory DocumentStore.
type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[uint]model.Document
	nextID    uint
	createErr error
	deleteErr error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[uint]model.Document), nextID: 1}
}

func (s *fakeDocStore) Create(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	doc.ID = s.nextID
	s.nextID++
	s.docs[doc.ID] = *doc
	return nil
}

func (s *fakeDocStore) List() ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeDocStore) GetByID(id uint) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *fakeDocStore) DeleteByID(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.docs, id)
	return nil
}

func (s *fakeDocStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// failingIndex fails Add while delegating everything else, for rollback
// tests.
type failingIndex struct {
	vectorstore.Index
}

func (f *failingIndex) Add(context.Context, []model.Chunk) error {
	return errors.New("index write refused")
}

// capturingPublisher records published interactions.
type capturingPublisher struct {
	mu           sync.Mutex
	interactions []model.Interaction
}

func (p *capturingPublisher) Publish(_ context.Context, interaction model.Interaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interactions = append(p.interactions, interaction)
	return nil
}

func (p *capturingPublisher) published() []model.Interaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Interaction, len(p.interactions))
	copy(out, p.interactions)
	return out
}

// fakeInteractionReader serves a fixed interaction list.
type fakeInteractionReader struct {
	interactions []model.Interaction
	err          error
}

func (r *fakeInteractionReader) ListBySessionID(sessionID string, limit int) ([]model.Interaction, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.Interaction
	for _, it := range r.interactions {
		if it.SessionID == sessionID {
			out = append(out, it)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
