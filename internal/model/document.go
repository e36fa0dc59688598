package model

import "time"

// Document is the relational record of an uploaded file. A row exists only
// when at least one indexing attempt for it succeeded; the upload flow
// deletes the row if indexing fails.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Filename  string    `gorm:"size:256;not null" json:"filename"`
	CreatedAt time.Time `json:"upload_timestamp"`
}
