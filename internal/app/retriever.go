package app

import (
	"context"
	"fmt"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/vectorstore"
)

// EmbeddingClient is the slice of the LLM client the pipeline needs for
// vectorizing text. Satisfied by *ai.OpenAICompatibleClient.
type EmbeddingClient interface {
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error)
}

// Retriever answers similarity queries against the vector index. It embeds
// queries with the same model configured at index time; mixing models
// makes the scores meaningless.
type Retriever struct {
	embedder EmbeddingClient
	embCfg   ai.EmbeddingConfig
	index    vectorstore.Index
}

func NewRetriever(embedder EmbeddingClient, embCfg ai.EmbeddingConfig, index vectorstore.Index) *Retriever {
	return &Retriever{
		embedder: embedder,
		embCfg:   embCfg,
		index:    index,
	}
}

// Retrieve returns the k most similar chunks for the query text. k stays
// small (2 by default) to bound prompt size and generation cost.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	if k <= 0 {
		k = 2
	}
	embedding, err := r.embedder.Embed(ctx, r.embCfg, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	chunks, err := r.index.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("query index failed: %w", err)
	}
	return chunks, nil
}
