package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"atelier/internal/shared/constants"
)

// LedgerEntryModel represents the database persistence model for payment
// ledger entries. The provider payment reference carries the uniqueness
// constraint that makes ledger appends idempotent.
type LedgerEntryModel struct {
	ID                 uint      `gorm:"primarykey"`
	SID                string    `gorm:"column:sid;uniqueIndex;not null;size:50;comment:Stripe-style ID: pay_xxx"`
	ProviderPaymentRef string    `gorm:"uniqueIndex:idx_provider_payment_ref;not null;size:100"`
	SubscriberID       uint      `gorm:"not null;index:idx_ledger_subscriber"`
	CreatorID          *uint     `gorm:"index:idx_ledger_creator"`
	SubscriptionID     *uint     `gorm:"index:idx_ledger_subscription"`
	Kind               string    `gorm:"not null;size:30"`
	Outcome            string    `gorm:"not null;size:20;index:idx_ledger_outcome"`
	AmountMinor        int64     `gorm:"not null"`
	Currency           string    `gorm:"not null;size:3"`
	RefundedMinor      int64     `gorm:"not null;default:0"`
	FailureReason      *string   `gorm:"size:500"`
	OccurredAt         time.Time `gorm:"not null;index:idx_ledger_occurred"`
	Metadata           datatypes.JSON
	Version            int `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for GORM
func (LedgerEntryModel) TableName() string {
	return constants.TableLedgerEntries
}

// BeforeCreate hook for GORM
func (e *LedgerEntryModel) BeforeCreate(tx *gorm.DB) error {
	if e.Version == 0 {
		e.Version = 1
	}
	return nil
}
