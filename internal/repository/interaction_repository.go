package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Create(interaction *model.Interaction) error {
	if err := r.db.Create(interaction).Error; err != nil {
		return fmt.Errorf("create interaction failed: %w", err)
	}
	return nil
}

// ListBySessionID returns a session's interactions oldest first. limit <= 0
// means no limit.
func (r *InteractionRepository) ListBySessionID(sessionID string, limit int) ([]model.Interaction, error) {
	q := r.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []model.Interaction
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list interactions failed: %w", err)
	}
	return list, nil
}
