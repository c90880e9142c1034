package models

import (
	"time"
)

// Module represents a named feature flag shown on the portfolio frontend.
// The flag state is toggled atomically in the store; the audit fields record
// who flipped it last and when.
type Module struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Name uniquely identifies the module and is immutable after creation.
	Name        string `gorm:"uniqueIndex;not null" json:"moduleName"`
	DisplayName string `gorm:"not null" json:"name"`

	// Category groups modules on the frontend: api, feature or component.
	Category string `gorm:"default:component" json:"category"`

	IsActive  bool `gorm:"default:true" json:"isActive"`
	IsBlocked bool `gorm:"default:false" json:"isBlocked"`

	LastModifiedAt time.Time `json:"lastModifiedAt"`
	// LastModifiedBy references the acting user's id. It is a weak
	// reference used only for audit attribution.
	LastModifiedBy string `json:"lastModifiedBy"`
}
