package model

import (
	"time"

	"github.com/google/uuid"
)

// Device represents a client device that can hold live socket connections
// and receive push notifications
type Device struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID  uuid.UUID  `json:"account_id" gorm:"type:uuid;not null;index"`
	Name       string     `json:"name" gorm:"size:255"`
	Platform   string     `json:"platform" gorm:"size:20;default:'unknown'"` // android, ios, web, desktop
	FCMToken   string     `json:"-" gorm:"size:500"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
