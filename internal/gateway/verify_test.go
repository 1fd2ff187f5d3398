package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/ws"
)

func newVerifyGateway() (*VerifyGateway, *ws.Registry[VerifySubscription], *fakeDeviceStore, *fakeSessionStore) {
	registry := ws.NewRegistry[VerifySubscription]()
	devices := newFakeDeviceStore()
	sessions := newFakeSessionStore()
	return NewVerifyGateway(registry, devices, sessions), registry, devices, sessions
}

func TestVerify_SubscribeRegistersWatcher(t *testing.T) {
	g, registry, devices, sessions := newVerifyGateway()
	device := devices.addDevice()
	session := sessions.addSession(device.ID, model.VerificationRequired, time.Now().Add(time.Hour))

	conn := &fakeConn{}
	g.HandleSubscribe(conn, verifyPayload(device.ID, session.ID))

	frame := conn.lastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, ws.EventSubStatus, frame.Event)
	assert.Equal(t, ws.StatusOK, frame.Status)

	sub, ok := registry.Get(conn)
	require.True(t, ok)
	assert.Equal(t, device.ID, sub.DeviceID)
	assert.Equal(t, session.ID, sub.SessionID)
}

func TestVerify_SubscribeUnknownDevice(t *testing.T) {
	g, registry, _, sessions := newVerifyGateway()
	session := sessions.addSession(uuid.New(), model.VerificationRequired, time.Now().Add(time.Hour))

	conn := &fakeConn{}
	g.HandleSubscribe(conn, verifyPayload(uuid.New(), session.ID))

	frame := conn.lastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, ws.EventError, frame.Event)
	require.NotNil(t, frame.Error)
	assert.Equal(t, "The device was not found", frame.Error.Message)
	assert.Equal(t, 0, registry.Len())
}

func TestVerify_SubscribeUnknownSession(t *testing.T) {
	g, registry, devices, _ := newVerifyGateway()
	device := devices.addDevice()

	conn := &fakeConn{}
	g.HandleSubscribe(conn, verifyPayload(device.ID, uuid.New()))

	frame := conn.lastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, ws.EventError, frame.Event)
	require.NotNil(t, frame.Error)
	assert.Equal(t, ErrSessionNotFound.Error(), frame.Error.Message)
	assert.Equal(t, 0, registry.Len())
}

func TestVerify_SubscribeExpiredSession(t *testing.T) {
	g, registry, devices, sessions := newVerifyGateway()
	device := devices.addDevice()
	session := sessions.addSession(device.ID, model.VerificationRequired, time.Now().Add(-time.Minute))

	conn := &fakeConn{}
	g.HandleSubscribe(conn, verifyPayload(device.ID, session.ID))

	frame := conn.lastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, ws.EventError, frame.Event)
	require.NotNil(t, frame.Error)
	assert.Equal(t, ErrSessionExpired.Error(), frame.Error.Message)
	assert.Equal(t, 0, registry.Len())
}

func TestVerify_SubscribeWrongStage(t *testing.T) {
	for _, stage := range []model.VerificationStageName{model.VerificationCompleted, model.VerificationNotRequired} {
		t.Run(string(stage), func(t *testing.T) {
			g, registry, devices, sessions := newVerifyGateway()
			device := devices.addDevice()
			session := sessions.addSession(device.ID, stage, time.Now().Add(time.Hour))

			conn := &fakeConn{}
			g.HandleSubscribe(conn, verifyPayload(device.ID, session.ID))

			frame := conn.lastFrame()
			require.NotNil(t, frame)
			assert.Equal(t, ws.EventError, frame.Event)
			require.NotNil(t, frame.Error)
			assert.Equal(t, ErrSessionNotAwaitingVerification.Error(), frame.Error.Message)
			assert.Equal(t, 0, registry.Len())
		})
	}
}

func TestVerify_UnsubscribeIsIdempotent(t *testing.T) {
	g, registry, _, _ := newVerifyGateway()
	conn := &fakeConn{}

	g.HandleUnsubscribe(conn, nil)

	frame := conn.lastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, ws.EventSubStatus, frame.Event)
	assert.Equal(t, ws.StatusOK, frame.Status)
	assert.Equal(t, 0, registry.Len())
}

func TestVerify_BroadcastReachesOnlyMatchingWatchers(t *testing.T) {
	g, _, devices, sessions := newVerifyGateway()
	device1 := devices.addDevice()
	device2 := devices.addDevice()
	session1 := sessions.addSession(device1.ID, model.VerificationRequired, time.Now().Add(time.Hour))
	session2 := sessions.addSession(device2.ID, model.VerificationRequired, time.Now().Add(time.Hour))

	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	g.HandleSubscribe(conn1, verifyPayload(device1.ID, session1.ID))
	g.HandleSubscribe(conn2, verifyPayload(device2.ID, session2.ID))

	// The session authority completed verification for session1
	sessions.setStage(session1.ID, model.VerificationCompleted)
	require.NoError(t, g.Broadcast(session1.ID))

	changed := conn1.framesOfEvent(ws.EventVerificationStageChanged)
	require.Len(t, changed, 1)

	var payload struct {
		Stage model.VerificationStageName `json:"stage"`
	}
	require.NoError(t, json.Unmarshal(changed[0].Data, &payload))
	assert.Equal(t, model.VerificationCompleted, payload.Stage)

	assert.Empty(t, conn2.framesOfEvent(ws.EventVerificationStageChanged))
}

func TestVerify_BroadcastUnknownSession(t *testing.T) {
	g, _, _, _ := newVerifyGateway()

	err := g.Broadcast(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestVerify_DisconnectCleansRegistry(t *testing.T) {
	g, registry, devices, sessions := newVerifyGateway()
	device := devices.addDevice()
	session := sessions.addSession(device.ID, model.VerificationRequired, time.Now().Add(time.Hour))

	conn := &fakeConn{}
	g.HandleSubscribe(conn, verifyPayload(device.ID, session.ID))
	require.Equal(t, 1, registry.Len())

	conn.close()
	g.HandleDisconnect(conn)
	assert.Equal(t, 0, registry.Len())

	// Later broadcasts quietly have no one to reach
	require.NoError(t, g.Broadcast(session.ID))
	assert.Empty(t, conn.framesOfEvent(ws.EventVerificationStageChanged))
}

func TestVerify_SubscribeRacingDisconnectLeavesNoZombie(t *testing.T) {
	g, registry, devices, sessions := newVerifyGateway()
	device := devices.addDevice()
	session := sessions.addSession(device.ID, model.VerificationRequired, time.Now().Add(time.Hour))

	conn := &fakeConn{}
	conn.close()

	g.HandleSubscribe(conn, verifyPayload(device.ID, session.ID))

	assert.Equal(t, 0, registry.Len())
}
