// Package vectorstore holds the persistent chunk index and its similarity
// search. Chunks are written in atomic batches and deleted only by source
// document id.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"ragchat/internal/model"
)

// ErrIndexUnavailable wraps any I/O failure against the underlying storage.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Index is the vector store contract. Add persists a batch atomically:
// either every chunk in the batch is stored or none are. DeleteByFileID is
// idempotent and reports how many chunks were removed.
type Index interface {
	Add(ctx context.Context, chunks []model.Chunk) error
	Query(ctx context.Context, embedding []float32, k int) ([]model.Chunk, error)
	DeleteByFileID(ctx context.Context, fileID uint) (int64, error)
	GetByFileID(ctx context.Context, fileID uint) ([]uint, error)
}

type scoredChunk struct {
	chunk model.Chunk
	score float32
}

// rank returns the k most similar chunks in decreasing score order. Ties
// keep insertion order: both implementations pass chunks in ascending id
// order, ids are assigned monotonically at insert (auto-increment in
// MySQL, a counter in memory), and the stable sort preserves that order
// among equal scores.
func rank(chunks []model.Chunk, embedding []float32, k int) []model.Chunk {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	scored := make([]scoredChunk, len(chunks))
	for i := range chunks {
		scored[i] = scoredChunk{
			chunk: chunks[i],
			score: cosineSimilarity(embedding, chunks[i].EmbeddingVector()),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if k > len(scored) {
		k = len(scored)
	}
	out := make([]model.Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].chunk
	}
	return out
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
