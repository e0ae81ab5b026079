package models

import (
	"time"
)

// User owns uploads and receipts.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index"`
	Username       string     `gorm:"size:255;not null;unique"`
	HashedPassword []byte     `gorm:"not null" json:"-"`
	RoleID         *uint      `gorm:"index"`
	Role           Role       `gorm:"foreignKey:RoleID;references:ID"`
	Receipts       []Receipt  `json:"-"`
}

// IsAdmin reports whether the loaded role is administrator.
func (u *User) IsAdmin() bool {
	return u.Role.Name == RoleAdministrator
}
