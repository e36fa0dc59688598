package vectorstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

// MySQLIndex persists chunks in the chunks table and scores similarity in
// memory, so the embedding column stays portable across MySQL versions.
type MySQLIndex struct {
	db *gorm.DB
}

func NewMySQLIndex(db *gorm.DB) *MySQLIndex {
	return &MySQLIndex{db: db}
}

// Add stores the batch in a single transaction so a partial write can
// never survive a failure.
func (s *MySQLIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&chunks).Error
	})
	if err != nil {
		return fmt.Errorf("%w: create chunks batch: %v", ErrIndexUnavailable, err)
	}
	return nil
}

func (s *MySQLIndex) Query(ctx context.Context, embedding []float32, k int) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", ErrIndexUnavailable, err)
	}
	return rank(chunks, embedding, k), nil
}

func (s *MySQLIndex) DeleteByFileID(ctx context.Context, fileID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("document_id = ?", fileID).Delete(&model.Chunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: delete chunks by document: %v", ErrIndexUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *MySQLIndex) GetByFileID(ctx context.Context, fileID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("document_id = ?", fileID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list chunk ids by document: %v", ErrIndexUnavailable, err)
	}
	return ids, nil
}
