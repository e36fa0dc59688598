package model

import "time"

// Interaction is one logged question/answer exchange. Degraded marks
// answers that are the rate-limit fallback text rather than a model reply.
type Interaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:64;not null;index" json:"session_id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Model     string    `gorm:"size:64;not null" json:"model"`
	Degraded  bool      `gorm:"not null;default:false" json:"degraded"`
	CreatedAt time.Time `json:"created_at"`
}
