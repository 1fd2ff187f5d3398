package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/gateway"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

// ErrUnknownDevice is returned when a producer targets a device id that does
// not exist
var ErrUnknownDevice = errors.New("recipient device does not exist")

type notificationRepo interface {
	Create(n *model.PushNotification) error
	FindStageByName(name model.StageName) (*model.NotificationStage, error)
}

type deviceRepo interface {
	FindByID(id uuid.UUID) (*model.Device, error)
}

// deliverer is the outward-facing half of the push gateway
type deliverer interface {
	Send(notificationID uuid.UUID) error
}

// nudger wakes an offline device through an out-of-band channel
type nudger interface {
	Nudge(ctx context.Context, device *model.Device, notificationID uuid.UUID) error
}

// NotificationService is the producer-side use case: persist a notification,
// then attempt immediate delivery over the live socket
type NotificationService struct {
	notifications notificationRepo
	devices       deviceRepo
	gateway       deliverer
	nudger        nudger
}

func NewNotificationService(notifications notificationRepo, devices deviceRepo, gw deliverer, nudger nudger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		devices:       devices,
		gateway:       gw,
		nudger:        nudger,
	}
}

// CreateAndDeliver queues a notification for the device and tries to hand it
// over right away. An offline recipient is the normal case, not a failure:
// the notification stays CREATED and is replayed when the device subscribes.
func (s *NotificationService) CreateAndDeliver(ctx context.Context, recipientDeviceID uuid.UUID, payload json.RawMessage) (*model.PushNotification, error) {
	device, err := s.devices.FindByID(recipientDeviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, err
	}

	created, err := s.notifications.FindStageByName(model.StageCreated)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gateway.ErrStageRowsMissing
		}
		return nil, err
	}

	n := &model.PushNotification{
		Payload:           payload,
		RecipientDeviceID: recipientDeviceID,
		StageID:           created.ID,
	}
	if err := s.notifications.Create(n); err != nil {
		return nil, err
	}

	switch err := s.gateway.Send(n.ID); {
	case err == nil:
	case errors.Is(err, gateway.ErrDeviceNotConnected):
		if s.nudger != nil {
			if nerr := s.nudger.Nudge(ctx, device, n.ID); nerr != nil {
				log.Printf("⚠️ Nudge for device %s failed: %v", device.ID, nerr)
			}
		}
	default:
		// Delivery failures never roll back creation; the stage machine
		// carries the truth
		log.Printf("⚠️ Immediate delivery of %s failed: %v", n.ID, err)
	}

	return n, nil
}
