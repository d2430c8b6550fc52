package models

import (
	"time"

	"gorm.io/datatypes"

	"atelier/internal/shared/constants"
)

// ProcessedEventModel is the durable dedup record for provider events. The
// unique event id doubles as the mutual-exclusion gate under concurrent
// redelivery: the insert winner performs effects, losers read the stored ack.
// Rows only need to outlive the provider's redelivery window and are purged
// periodically.
type ProcessedEventModel struct {
	ID          uint   `gorm:"primarykey"`
	EventID     string `gorm:"uniqueIndex:idx_event_id;not null;size:100"`
	Ack         datatypes.JSON
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"index:idx_event_created"`
}

// TableName specifies the table name for GORM
func (ProcessedEventModel) TableName() string {
	return constants.TableProcessedEvents
}
