package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"atelier/internal/shared/constants"
)

// SubscriptionModel represents the database persistence model for subscriptions.
// This is the anti-corruption layer between domain and database.
//
// ActivePairKey enforces the one non-terminal record per (subscriber, creator)
// invariant at the storage layer: it holds "subscriber:creator" while the
// record is non-terminal and NULL once canceled, so the unique index only
// bites on live records.
type SubscriptionModel struct {
	ID                    uint       `gorm:"primarykey"`
	SID                   string     `gorm:"column:sid;uniqueIndex;not null;size:50;comment:Stripe-style ID: sub_xxx"`
	SubscriberID          uint       `gorm:"not null;index:idx_subscriber"`
	CreatorID             *uint      `gorm:"index:idx_creator"`
	Tier                  string     `gorm:"not null;size:20"`
	ExternalRef           *string    `gorm:"uniqueIndex:idx_external_ref;size:100"`
	Status                string     `gorm:"not null;size:20;index:idx_status"`
	ActivePairKey         *string    `gorm:"uniqueIndex:idx_active_pair;size:50"`
	CurrentPeriodStart    time.Time  `gorm:"not null"`
	CurrentPeriodEnd      time.Time  `gorm:"not null"`
	CancelAtPeriodEnd     bool       `gorm:"not null;default:false"`
	CanceledAt            *time.Time
	PendingReconciliation bool `gorm:"not null;default:false"`
	Metadata              datatypes.JSON
	Version               int `gorm:"not null;default:1"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TableName specifies the table name for GORM
func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

// BeforeCreate hook for GORM
func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
