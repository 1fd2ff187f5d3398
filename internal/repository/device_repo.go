package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

// DeviceRepository handles database operations for Device
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FindByID finds a device by ID
func (r *DeviceRepository) FindByID(id uuid.UUID) (*model.Device, error) {
	var device model.Device
	err := r.db.Where("id = ?", id).First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// TouchLastSeen updates the device's last_seen_at timestamp
func (r *DeviceRepository) TouchLastSeen(id uuid.UUID) error {
	now := time.Now()
	return r.db.Model(&model.Device{}).
		Where("id = ?", id).
		Update("last_seen_at", &now).Error
}
