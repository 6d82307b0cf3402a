package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the owner of every other record. Most users are anonymous
// device-bound sessions; OAuth sign-in upgrades them in place.
// Device secrets are stored as bcrypt hashes only.
type User struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Anonymous        bool       `gorm:"default:true" json:"anonymous"`
	DeviceSecretHash string     `gorm:"size:255" json:"-"`
	Provider         string     `gorm:"size:32" json:"provider,omitempty"`
	ProviderID       string     `gorm:"size:255" json:"-"`
	Email            string     `gorm:"size:255" json:"email,omitempty"`
	DisplayName      string     `gorm:"size:64" json:"display_name,omitempty"`
	AvatarURL        string     `gorm:"size:512" json:"avatar_url,omitempty"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the opaque string id and timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
