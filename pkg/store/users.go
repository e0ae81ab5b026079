package store

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"receipt2ledger/models"
)

const minPasswordLen = 6

// CreateUser hashes password and stores a user with the named role.
func (s *Store) CreateUser(username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username required")
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("password too short (min %d)", minPasswordLen)
	}
	if role == "" {
		role = models.RoleUser
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	r := models.Role{Name: role}
	if err := s.db.Where("name = ?", role).FirstOrCreate(&r).Error; err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", role, err)
	}
	u := models.User{Username: username, HashedPassword: hashed, RoleID: &r.ID, Role: r}
	if err := s.db.Omit("Role").Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &u, nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(username, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password too short (min %d)", minPasswordLen)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := s.db.Model(&models.User{}).Where("username = ?", strings.TrimSpace(username)).
		Update("hashed_password", hashed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate checks username and password. Both unknown users and wrong
// passwords yield ErrInvalidCredentials.
func (s *Store) Authenticate(username, password string) (*models.User, error) {
	u, err := s.UserByName(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.HashedPassword, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) UserByName(username string) (*models.User, error) {
	var u models.User
	if err := s.db.Preload("Role").Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserByID(id uint) (*models.User, error) {
	var u models.User
	if err := s.db.Preload("Role").First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
