package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/ws"
	"gorm.io/gorm"
)

// fakeConn is an in-process transport endpoint recording what was sent to it
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	frames []*ws.Envelope
}

func (c *fakeConn) Send(env *ws.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClientClosed
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) sent() []*ws.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ws.Envelope(nil), c.frames...)
}

func (c *fakeConn) lastFrame() *ws.Envelope {
	frames := c.sent()
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func (c *fakeConn) framesOfEvent(event string) []*ws.Envelope {
	var out []*ws.Envelope
	for _, f := range c.sent() {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type fakeDeviceStore struct {
	devices  map[uuid.UUID]*model.Device
	touchErr error
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{devices: make(map[uuid.UUID]*model.Device)}
}

func (s *fakeDeviceStore) addDevice() *model.Device {
	d := &model.Device{ID: uuid.New(), AccountID: uuid.New(), Platform: "ios"}
	s.devices[d.ID] = d
	return d
}

func (s *fakeDeviceStore) FindByID(id uuid.UUID) (*model.Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (s *fakeDeviceStore) TouchLastSeen(id uuid.UUID) error {
	return s.touchErr
}

type fakeNotificationStore struct {
	stages        map[model.StageName]*model.NotificationStage
	notifications map[uuid.UUID]*model.PushNotification
	order         []uuid.UUID
	listErr       error
}

func newFakeNotificationStore() *fakeNotificationStore {
	s := &fakeNotificationStore{
		stages:        make(map[model.StageName]*model.NotificationStage),
		notifications: make(map[uuid.UUID]*model.PushNotification),
	}
	for _, name := range []model.StageName{model.StageCreated, model.StageSent, model.StageArrived} {
		s.stages[name] = &model.NotificationStage{ID: uuid.New(), Name: name}
	}
	return s
}

func (s *fakeNotificationStore) addNotification(deviceID uuid.UUID, body string) *model.PushNotification {
	n := &model.PushNotification{
		ID:                uuid.New(),
		Payload:           json.RawMessage(fmt.Sprintf(`{"body":%q}`, body)),
		RecipientDeviceID: deviceID,
		StageID:           s.stages[model.StageCreated].ID,
		CreatedAt:         time.Now(),
	}
	s.notifications[n.ID] = n
	s.order = append(s.order, n.ID)
	return n
}

func (s *fakeNotificationStore) stageOf(id uuid.UUID) model.StageName {
	n, ok := s.notifications[id]
	if !ok {
		return ""
	}
	for name, stage := range s.stages {
		if stage.ID == n.StageID {
			return name
		}
	}
	return ""
}

func (s *fakeNotificationStore) setStage(id uuid.UUID, name model.StageName) {
	s.notifications[id].StageID = s.stages[name].ID
}

func (s *fakeNotificationStore) FindByID(id uuid.UUID) (*model.PushNotification, error) {
	n, ok := s.notifications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	cp.Stage = model.NotificationStage{ID: n.StageID, Name: s.stageOf(id)}
	return &cp, nil
}

func (s *fakeNotificationStore) FindForDeviceInStages(deviceID uuid.UUID, stageIDs []uuid.UUID) ([]model.PushNotification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	wanted := make(map[uuid.UUID]bool, len(stageIDs))
	for _, id := range stageIDs {
		wanted[id] = true
	}

	var out []model.PushNotification
	for _, id := range s.order {
		n := s.notifications[id]
		if n.RecipientDeviceID == deviceID && wanted[n.StageID] {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) UpdateStage(id, stageID uuid.UUID) error {
	n, ok := s.notifications[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.StageID = stageID
	return nil
}

func (s *fakeNotificationStore) FindStageByName(name model.StageName) (*model.NotificationStage, error) {
	stage, ok := s.stages[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stage, nil
}

type fakeSessionStore struct {
	sessions map[uuid.UUID]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.Session)}
}

func (s *fakeSessionStore) addSession(deviceID uuid.UUID, stage model.VerificationStageName, expiresAt time.Time) *model.Session {
	session := &model.Session{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		AccountID: uuid.New(),
		ExpiresAt: expiresAt,
		VerificationStage: model.VerificationStage{
			ID:   uuid.New(),
			Name: stage,
		},
	}
	session.VerificationStageID = session.VerificationStage.ID
	s.sessions[session.ID] = session
	return session
}

func (s *fakeSessionStore) setStage(id uuid.UUID, stage model.VerificationStageName) {
	session := s.sessions[id]
	session.VerificationStage = model.VerificationStage{ID: uuid.New(), Name: stage}
	session.VerificationStageID = session.VerificationStage.ID
}

func (s *fakeSessionStore) FindByID(id uuid.UUID) (*model.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *session
	return &cp, nil
}

// subscribePayload builds the raw data of a SUBSCRIBE_NOTIFY frame
func subscribePayload(deviceID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"deviceUuid":%q}`, deviceID))
}

// confirmPayload builds the raw data of a CONFIRM_ARRIVED_NOTIFICATION frame
func confirmPayload(notificationID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"pushNotificationId":%q}`, notificationID))
}

// verifyPayload builds the raw data of a verification subscribe frame
func verifyPayload(deviceID, sessionID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"deviceUuid":%q,"sessionUuid":%q}`, deviceID, sessionID))
}
