package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StageName identifies a point in a push notification's delivery lifecycle
type StageName string

const (
	StageCreated StageName = "CREATED"
	StageSent    StageName = "SENT"
	StageArrived StageName = "ARRIVED"
)

// NotificationStage is a lifecycle stage row. The three canonical rows
// (CREATED, SENT, ARRIVED) are seeded by migrations; a missing row is a
// deployment defect, not a per-request condition.
type NotificationStage struct {
	ID   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name StageName `json:"name" gorm:"type:varchar(20);uniqueIndex;not null"`
}

// PushNotification is a durably queued message targeted at one device.
// Its stage only ever moves forward: CREATED -> SENT -> ARRIVED.
type PushNotification struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Payload           json.RawMessage `json:"payload" gorm:"type:jsonb;not null"`
	RecipientDeviceID uuid.UUID       `json:"recipient_device_id" gorm:"type:uuid;not null;index"`
	StageID           uuid.UUID       `json:"stage_id" gorm:"type:uuid;not null;index"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	// Relations
	Stage           NotificationStage `json:"stage" gorm:"foreignKey:StageID"`
	RecipientDevice Device            `json:"-" gorm:"foreignKey:RecipientDeviceID"`
}
