package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultgate/vaultgate/internal/gateway"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

type fakeNotificationRepo struct {
	created      []*model.PushNotification
	createdStage *model.NotificationStage
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		createdStage: &model.NotificationStage{ID: uuid.New(), Name: model.StageCreated},
	}
}

func (r *fakeNotificationRepo) Create(n *model.PushNotification) error {
	n.ID = uuid.New()
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotificationRepo) FindStageByName(name model.StageName) (*model.NotificationStage, error) {
	if r.createdStage == nil || name != r.createdStage.Name {
		return nil, gorm.ErrRecordNotFound
	}
	return r.createdStage, nil
}

type fakeDeviceRepo struct {
	devices map[uuid.UUID]*model.Device
}

func (r *fakeDeviceRepo) FindByID(id uuid.UUID) (*model.Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

type fakeDeliverer struct {
	sent []uuid.UUID
	err  error
}

func (d *fakeDeliverer) Send(notificationID uuid.UUID) error {
	d.sent = append(d.sent, notificationID)
	return d.err
}

type fakeNudger struct {
	nudged []uuid.UUID
}

func (n *fakeNudger) Nudge(ctx context.Context, device *model.Device, notificationID uuid.UUID) error {
	n.nudged = append(n.nudged, notificationID)
	return nil
}

func TestNotificationService_CreateAndDeliverOnline(t *testing.T) {
	repo := newFakeNotificationRepo()
	device := &model.Device{ID: uuid.New()}
	devices := &fakeDeviceRepo{devices: map[uuid.UUID]*model.Device{device.ID: device}}
	deliverer := &fakeDeliverer{}
	nudger := &fakeNudger{}

	svc := NewNotificationService(repo, devices, deliverer, nudger)

	n, err := svc.CreateAndDeliver(context.Background(), device.ID, json.RawMessage(`{"title":"hi"}`))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, repo.createdStage.ID, n.StageID)

	require.Len(t, deliverer.sent, 1)
	assert.Equal(t, n.ID, deliverer.sent[0])
	assert.Empty(t, nudger.nudged, "online delivery must not nudge")
}

func TestNotificationService_OfflineDeviceGetsNudged(t *testing.T) {
	repo := newFakeNotificationRepo()
	device := &model.Device{ID: uuid.New(), FCMToken: "token"}
	devices := &fakeDeviceRepo{devices: map[uuid.UUID]*model.Device{device.ID: device}}
	deliverer := &fakeDeliverer{err: gateway.ErrDeviceNotConnected}
	nudger := &fakeNudger{}

	svc := NewNotificationService(repo, devices, deliverer, nudger)

	n, err := svc.CreateAndDeliver(context.Background(), device.ID, json.RawMessage(`{"title":"hi"}`))
	require.NoError(t, err, "an offline recipient is not a failure")
	require.NotNil(t, n)

	require.Len(t, nudger.nudged, 1)
	assert.Equal(t, n.ID, nudger.nudged[0])
}

func TestNotificationService_UnknownDevice(t *testing.T) {
	repo := newFakeNotificationRepo()
	devices := &fakeDeviceRepo{devices: map[uuid.UUID]*model.Device{}}

	svc := NewNotificationService(repo, devices, &fakeDeliverer{}, nil)

	_, err := svc.CreateAndDeliver(context.Background(), uuid.New(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Empty(t, repo.created)
}

func TestNotificationService_MissingStageRowsIsFatal(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.createdStage = nil
	device := &model.Device{ID: uuid.New()}
	devices := &fakeDeviceRepo{devices: map[uuid.UUID]*model.Device{device.ID: device}}

	svc := NewNotificationService(repo, devices, &fakeDeliverer{}, nil)

	_, err := svc.CreateAndDeliver(context.Background(), device.ID, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, gateway.ErrStageRowsMissing)
}
