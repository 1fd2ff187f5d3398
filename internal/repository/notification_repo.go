package repository

import (
	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository handles database operations for PushNotification
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new push notification
func (r *NotificationRepository) Create(n *model.PushNotification) error {
	return r.db.Create(n).Error
}

// FindByID finds a notification by ID with its stage joined
func (r *NotificationRepository) FindByID(id uuid.UUID) (*model.PushNotification, error) {
	var n model.PushNotification
	err := r.db.
		Preload("Stage").
		Where("id = ?", id).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// FindForDeviceInStages returns the device's notifications sitting in any of
// the given stages, in creation order. Used to replay undelivered
// notifications when a device (re)subscribes.
func (r *NotificationRepository) FindForDeviceInStages(deviceID uuid.UUID, stageIDs []uuid.UUID) ([]model.PushNotification, error) {
	notifications := []model.PushNotification{}
	err := r.db.
		Where("recipient_device_id = ? AND stage_id IN ?", deviceID, stageIDs).
		Order("created_at ASC, id ASC").
		Find(&notifications).Error
	return notifications, err
}

// UpdateStage points the notification at a new stage row
func (r *NotificationRepository) UpdateStage(id, stageID uuid.UUID) error {
	return r.db.Model(&model.PushNotification{}).
		Where("id = ?", id).
		Update("stage_id", stageID).Error
}

// FindStageByName looks up a notification stage row by name
func (r *NotificationRepository) FindStageByName(name model.StageName) (*model.NotificationStage, error) {
	var stage model.NotificationStage
	err := r.db.Where("name = ?", name).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}
