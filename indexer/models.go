package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRow is the persisted form of a committed ledger event.
type EventRow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Session    string    `gorm:"size:36;index"`
	Sequence   uint64    `gorm:"index"`
	CampaignID uint64    `gorm:"index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	Digest     string    `gorm:"size:64;uniqueIndex"`
	RecordedAt time.Time `gorm:"index"`
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (EventRow) TableName() string { return "ledger_events" }

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRow{})
}
