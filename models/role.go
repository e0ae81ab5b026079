package models

import "time"

const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// Role is a named permission level; administrators see every user's receipts.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// DefaultRoles are seeded on startup.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdministrator, Description: "full access"},
		{Name: RoleUser, Description: "regular user"},
	}
}
