package models

import (
	"time"
)

// Upload is a stored notification screenshot. Rows are kept when recognition
// fails so the image can be reviewed.
type Upload struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string `gorm:"size:255;not null"`          // name as sent by the client
	StorePath   string `gorm:"column:store_path;size:512"` // relative to UPLOAD_BASE
	Digest      string `gorm:"size:64;index"`
	UserID      uint   `gorm:"index;not null"`
	User        User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ContentType string `gorm:"size:128"`
	ReceiptID   *uint  `gorm:"index"`

	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}
