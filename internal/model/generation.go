package model

import "time"

// Generation status values.
const (
	GenerationStatusSuccess = "success"
	GenerationStatusPartial = "partial"
	GenerationStatusFailed  = "failed"
)

// GenerationRecord is one completed multi-platform generation run.
type GenerationRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID    string    `gorm:"type:varchar(64);index" json:"request_id"`
	Identity     string    `gorm:"type:varchar(128);index" json:"identity"`
	CacheKey     string    `gorm:"type:varchar(255)" json:"cache_key"`
	Title        string    `gorm:"type:varchar(255)" json:"title"`
	Platforms    string    `gorm:"type:varchar(255)" json:"platforms"` // comma separated, request order
	Template     string    `gorm:"type:varchar(64)" json:"template"`
	Status       string    `gorm:"type:varchar(16);index" json:"status"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Errors       string    `gorm:"type:text" json:"errors,omitempty"` // JSON array of platform errors
	Cached       bool      `json:"cached"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (GenerationRecord) TableName() string {
	return "generation_history"
}
