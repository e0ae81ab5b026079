package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerPending = "pending"
	LedgerPosted  = "posted"
)

// Receipt is a normalized transaction waiting for (or already sent to) the
// ledger. TransactionNumber is the ledger's external id and is unique.
type Receipt struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint  `gorm:"index;not null"`
	User      User  `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UploadID  *uint `gorm:"index"`

	Description          string              `gorm:"size:255;not null"`
	Amount               decimal.Decimal     `gorm:"type:numeric(18,4);not null"`
	CurrencySymbol       string              `gorm:"size:8"`
	CurrencyCode         string              `gorm:"size:3;not null;index"`
	ForeignAmount        decimal.NullDecimal `gorm:"type:numeric(18,4)"`
	ForeignCurrencyCode  string              `gorm:"size:3"`
	OccurredAt           time.Time           `gorm:"not null;index"`
	LedgerDate           string              `gorm:"size:19;not null"`
	CardIdentifier       string              `gorm:"size:255"`
	TransactionNumber    string              `gorm:"size:64;not null;uniqueIndex"`
	MerchantCategoryCode string              `gorm:"size:4"`
	Warnings             string              `gorm:"size:512"`

	LedgerStatus string     `gorm:"size:16;not null;default:pending;index"`
	LedgerRef    string     `gorm:"size:128"`
	PostedAt     *time.Time `gorm:"index"`
}
