package models

import (
	"time"
)

// User is the administrative account allowed to authenticate against this
// daemon. The deployment runs with a single superAdmin user.
type User struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	// Password holds the bcrypt hash, never the plain text value.
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"default:superAdmin" json:"role"`
	Name     string `gorm:"not null" json:"name"`
	Avatar   string `gorm:"default:''" json:"avatar"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`

	// RefreshToken is the opaque long-lived token issued on first login and
	// exchanged for fresh access tokens.
	RefreshToken string `gorm:"index" json:"-"`
}
