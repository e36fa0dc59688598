package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/ai"
	"ragchat/internal/chunker"
	"ragchat/internal/loader"
	"ragchat/internal/model"
	"ragchat/internal/vectorstore"
)

const embeddingBatchSize = 10 // embedding APIs often limit batch size

// DocumentStore is the relational document-record storage used by the
// ingest pipeline. Satisfied by *repository.DocumentRepository.
type DocumentStore interface {
	Create(doc *model.Document) error
	List() ([]model.Document, error)
	GetByID(id uint) (*model.Document, error)
	DeleteByID(id uint) error
}

// IngestService runs the write path: load, split, embed, index, record.
type IngestService struct {
	loader   *loader.Loader
	splitter *chunker.Splitter
	embedder EmbeddingClient
	embCfg   ai.EmbeddingConfig
	index    vectorstore.Index
	docs     DocumentStore
	logger   *zap.Logger
}

func NewIngestService(
	ld *loader.Loader,
	splitter *chunker.Splitter,
	embedder EmbeddingClient,
	embCfg ai.EmbeddingConfig,
	index vectorstore.Index,
	docs DocumentStore,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		loader:   ld,
		splitter: splitter,
		embedder: embedder,
		embCfg:   embCfg,
		index:    index,
		docs:     docs,
		logger:   logger,
	}
}

// IngestResult is returned after a successful upload.
type IngestResult struct {
	DocumentID uint   `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingest validates, loads, splits, and embeds content, then creates the
// document record and indexes the chunks under its id. The record exists
// only if indexing succeeded: a failure after record creation deletes the
// record and any chunks already written under its id.
func (s *IngestService) Ingest(ctx context.Context, filename string, content []byte) (*IngestResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}
	ext := strings.ToLower(filepath.Ext(filename))

	docs, err := s.loader.LoadBytes(content, ext)
	if err != nil {
		return nil, err
	}
	pieces, err := s.splitter.Split(docs)
	if err != nil {
		return nil, err
	}

	embeddings, err := s.embedPieces(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks failed: %w", err)
	}

	doc := &model.Document{Filename: filename}
	if err := s.docs.Create(doc); err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			Seq:        piece.Seq,
			Content:    piece.Text,
		}
		chunks[i].SetEmbedding(embeddings[i])
	}

	if err := s.index.Add(ctx, chunks); err != nil {
		s.rollback(ctx, doc.ID)
		return nil, fmt.Errorf("index document failed: %w", err)
	}

	s.logger.Info("document indexed",
		zap.Uint("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))

	return &IngestResult{
		DocumentID: doc.ID,
		Filename:   filename,
		ChunkCount: len(chunks),
	}, nil
}

// embedPieces calls the embedding API in bounded batches and checks the
// count matches, since a silent mismatch would misalign chunk vectors.
func (s *IngestService) embedPieces(ctx context.Context, pieces []chunker.Piece) ([][]float32, error) {
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	var embeddings [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, s.embCfg, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// rollback compensates a failed indexing attempt. Errors are logged, not
// returned: the original failure is what the caller needs to see.
func (s *IngestService) rollback(ctx context.Context, docID uint) {
	if _, err := s.index.DeleteByFileID(ctx, docID); err != nil {
		s.logger.Error("rollback: delete chunks failed", zap.Uint("document_id", docID), zap.Error(err))
	}
	if err := s.docs.DeleteByID(docID); err != nil {
		s.logger.Error("rollback: delete document record failed", zap.Uint("document_id", docID), zap.Error(err))
	}
}

// ListDocuments returns all document records.
func (s *IngestService) ListDocuments() ([]model.Document, error) {
	return s.docs.List()
}

// DeleteOutcome distinguishes the terminal states of a two-phase delete.
type DeleteOutcome int

const (
	// DeleteOK: chunks and record are both gone.
	DeleteOK DeleteOutcome = iota
	// DeleteNoDocuments: nothing was indexed under that id; success.
	DeleteNoDocuments
	// DeletePartialRelational: chunks removed from the vector index but
	// the relational record could not be deleted. The caller must report
	// this state explicitly.
	DeletePartialRelational
)

type DeleteResult struct {
	Outcome       DeleteOutcome
	ChunksRemoved int64
}

// DeleteDocument removes a document from the vector index first, then from
// relational storage only if the vector deletion succeeded. The two stores
// share no transaction, so the partial-failure state is modeled rather
// than hidden. Deleting an unknown file id is a success with zero removed.
func (s *IngestService) DeleteDocument(ctx context.Context, fileID uint) (*DeleteResult, error) {
	if fileID == 0 {
		return nil, ErrInvalidInput
	}

	removed, err := s.index.DeleteByFileID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("delete from vector index failed: %w", err)
	}

	doc, err := s.docs.GetByID(fileID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		outcome := DeleteOK
		if removed == 0 {
			outcome = DeleteNoDocuments
		}
		return &DeleteResult{Outcome: outcome, ChunksRemoved: removed}, nil
	}

	if err := s.docs.DeleteByID(fileID); err != nil {
		s.logger.Warn("document deleted from vector index but not from relational store",
			zap.Uint("document_id", fileID), zap.Error(err))
		return &DeleteResult{Outcome: DeletePartialRelational, ChunksRemoved: removed}, nil
	}

	return &DeleteResult{Outcome: DeleteOK, ChunksRemoved: removed}, nil
}
