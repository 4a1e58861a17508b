package usage

import (
	"time"

	"gorm.io/datatypes"
)

// Record is one append-only entry per completed generation. Records are never
// mutated or deleted by the service.
type Record struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Kind      string         `json:"kind"` // "opener" or "question"
	SourceURL string         `json:"source_url"`
	Context   string         `json:"context"` // email purpose or question text
	Generated string         `json:"generated"`
	Model     string         `json:"model"`
	Meta      datatypes.JSON `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Feedback is an append-only user rating of a generated result.
type Feedback struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SourceURL string    `json:"source_url"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Counter is the persisted deployment-wide run counter.
type Counter struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"uniqueIndex"`
	Total int64
}
