package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStageName identifies where a session sits in the multi-factor
// approval flow
type VerificationStageName string

const (
	VerificationRequired    VerificationStageName = "REQUIRED"
	VerificationNotRequired VerificationStageName = "NOT_REQUIRED"
	VerificationCompleted   VerificationStageName = "COMPLETED"
)

// VerificationStage is a session verification stage row, seeded by migrations
type VerificationStage struct {
	ID   uuid.UUID             `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name VerificationStageName `json:"name" gorm:"type:varchar(20);uniqueIndex;not null"`
}

// Session is an authentication session owned by the account service. The
// gateway reads it to decide subscription eligibility and to read the live
// stage when broadcasting; it never advances the stage itself.
type Session struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DeviceID            uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index"`
	AccountID           uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index"`
	VerificationStageID uuid.UUID `json:"verification_stage_id" gorm:"type:uuid;not null"`
	ExpiresAt           time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Relations
	VerificationStage VerificationStage `json:"verification_stage" gorm:"foreignKey:VerificationStageID"`
	Device            Device            `json:"-" gorm:"foreignKey:DeviceID"`
}

// IsExpired reports whether the session's expiry is in the past
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
