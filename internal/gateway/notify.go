package gateway

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/ws"
	"gorm.io/gorm"
)

// deviceStore is the slice of the device repository the gateways need
type deviceStore interface {
	FindByID(id uuid.UUID) (*model.Device, error)
	TouchLastSeen(id uuid.UUID) error
}

// notificationStore is the slice of the notification repository the push
// delivery state machine needs
type notificationStore interface {
	FindByID(id uuid.UUID) (*model.PushNotification, error)
	FindForDeviceInStages(deviceID uuid.UUID, stageIDs []uuid.UUID) ([]model.PushNotification, error)
	UpdateStage(id, stageID uuid.UUID) error
	FindStageByName(name model.StageName) (*model.NotificationStage, error)
}

// NotifyGateway drives each notification through CREATED -> SENT -> ARRIVED.
// Durability lives entirely in the persisted stage; the registry is only a
// routing table for who is online right now.
type NotifyGateway struct {
	registry      *ws.Registry[uuid.UUID] // conn -> recipient device id
	devices       deviceStore
	notifications notificationStore
}

// NewNotifyGateway creates the push notification gateway
func NewNotifyGateway(registry *ws.Registry[uuid.UUID], devices deviceStore, notifications notificationStore) *NotifyGateway {
	return &NotifyGateway{
		registry:      registry,
		devices:       devices,
		notifications: notifications,
	}
}

// RegisterRoutes binds the gateway's handlers into the dispatch table
func (g *NotifyGateway) RegisterRoutes(d *ws.Dispatcher) {
	d.Register(ws.NamespaceNotifications, ws.EventSubscribeNotify, g.HandleSubscribe)
	d.Register(ws.NamespaceNotifications, ws.EventUnsubscribeNotify, g.HandleUnsubscribe)
	d.Register(ws.NamespaceNotifications, ws.EventConfirmArrived, g.HandleConfirm)
	d.OnDisconnect(g.HandleDisconnect)
}

type subscribeNotifyPayload struct {
	DeviceUUID uuid.UUID `json:"deviceUuid"`
}

type confirmArrivedPayload struct {
	PushNotificationID uuid.UUID `json:"pushNotificationId"`
}

// arrivedMetadata rides along every ARRIVED_NOTIFICATION frame so the client
// can confirm receipt by id
type arrivedMetadata struct {
	NotificationID uuid.UUID `json:"__notificationId"`
}

// HandleSubscribe registers the connection for a device and replays every
// notification not yet confirmed by that device, in creation order
func (g *NotifyGateway) HandleSubscribe(conn ws.Conn, data json.RawMessage) {
	var payload subscribeNotifyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("notify: dropping malformed SUBSCRIBE_NOTIFY payload: %v", err)
		return
	}

	if _, err := g.devices.FindByID(payload.DeviceUUID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(conn, ws.NamespaceNotifications, ErrDeviceNotFound)
			return
		}
		log.Printf("notify: device lookup failed: %v", err)
		sendError(conn, ws.NamespaceNotifications, err)
		return
	}

	if !g.registry.Set(conn, payload.DeviceUUID) {
		// Connection died while the device lookup was in flight
		return
	}
	if err := g.devices.TouchLastSeen(payload.DeviceUUID); err != nil {
		log.Printf("notify: touch last seen for device %s failed: %v", payload.DeviceUUID, err)
	}

	if err := g.replay(payload.DeviceUUID); err != nil {
		log.Printf("notify: replay for device %s failed: %v", payload.DeviceUUID, err)
		if errors.Is(err, ErrStageRowsMissing) {
			// Deployment defect, not a usable subscription
			g.registry.Remove(conn)
			sendError(conn, ws.NamespaceNotifications, ErrStageRowsMissing)
			return
		}
		// Transient failure: the subscription stands, but the device must
		// not believe it is caught up
		sendError(conn, ws.NamespaceNotifications, ErrReplayFailed)
		return
	}

	reply(conn, ws.NewStatusEnvelope(ws.NamespaceNotifications, ws.EventSubscribeStatus))
}

// replay pushes every CREATED or SENT notification for the device through
// Send, oldest first
func (g *NotifyGateway) replay(deviceID uuid.UUID) error {
	created, err := g.notifications.FindStageByName(model.StageCreated)
	if err != nil {
		return stageLookupError(err)
	}
	sent, err := g.notifications.FindStageByName(model.StageSent)
	if err != nil {
		return stageLookupError(err)
	}

	pending, err := g.notifications.FindForDeviceInStages(deviceID, []uuid.UUID{created.ID, sent.ID})
	if err != nil {
		return err
	}

	for _, n := range pending {
		if err := g.Send(n.ID); err != nil {
			// The device may have dropped mid-replay; the rest stays
			// queued for the next subscribe
			return err
		}
	}
	return nil
}

// HandleUnsubscribe removes the connection's entry, if any. Always replies
// ok: unsubscribing an unsubscribed connection is not an error.
func (g *NotifyGateway) HandleUnsubscribe(conn ws.Conn, _ json.RawMessage) {
	g.registry.Remove(conn)
	reply(conn, ws.NewStatusEnvelope(ws.NamespaceNotifications, ws.EventSubscribeStatus))
}

// Send delivers one notification to its recipient's live connection. Called
// by internal producers after persisting a notification, and by replay.
//
// Returns ErrNotificationNotFound for an unknown id and ErrDeviceNotConnected
// when the recipient is offline; the latter is the normal case for a device
// that is away, and producers are expected to swallow it. The SENT transition
// is persisted before transmitting: a crash between the two leaves the
// notification SENT-but-undelivered, which the replay on reconnect covers.
func (g *NotifyGateway) Send(notificationID uuid.UUID) error {
	n, err := g.notifications.FindByID(notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}

	entries := g.registry.Find(func(deviceID uuid.UUID) bool {
		return deviceID == n.RecipientDeviceID
	})
	if len(entries) == 0 {
		return ErrDeviceNotConnected
	}

	sent, err := g.notifications.FindStageByName(model.StageSent)
	if err != nil {
		return stageLookupError(err)
	}

	if err := g.notifications.UpdateStage(n.ID, sent.ID); err != nil {
		return err
	}

	env := &ws.Envelope{
		Namespace: ws.NamespaceNotifications,
		Event:     ws.EventArrivedNotification,
		Data:      n.Payload,
		Metadata:  arrivedMetadata{NotificationID: n.ID},
	}
	for _, entry := range entries {
		if err := entry.Conn.Send(env); err != nil {
			// Stage is already SENT; the frame is replayed on reconnect
			log.Printf("notify: send of %s failed: %v", n.ID, err)
		}
	}
	return nil
}

// HandleConfirm advances a notification to ARRIVED on the device's say-so
func (g *NotifyGateway) HandleConfirm(conn ws.Conn, data json.RawMessage) {
	var payload confirmArrivedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("notify: dropping malformed CONFIRM_ARRIVED_NOTIFICATION payload: %v", err)
		return
	}

	n, err := g.notifications.FindByID(payload.PushNotificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(conn, ws.NamespaceNotifications, ErrNotificationNotFound)
			return
		}
		log.Printf("notify: confirm lookup failed: %v", err)
		sendError(conn, ws.NamespaceNotifications, err)
		return
	}

	// A confirm for a notification never handed to the device would claim
	// arrival of a frame that was never transmitted; a repeated confirm of
	// one already ARRIVED gets its own rejection
	switch n.Stage.Name {
	case model.StageSent:
	case model.StageArrived:
		sendError(conn, ws.NamespaceNotifications, ErrNotificationAlreadyArrived)
		return
	default:
		sendError(conn, ws.NamespaceNotifications, ErrNotificationNotSent)
		return
	}

	arrived, err := g.notifications.FindStageByName(model.StageArrived)
	if err != nil {
		sendError(conn, ws.NamespaceNotifications, stageLookupError(err))
		return
	}
	if err := g.notifications.UpdateStage(n.ID, arrived.ID); err != nil {
		log.Printf("notify: confirm of %s failed: %v", n.ID, err)
		sendError(conn, ws.NamespaceNotifications, err)
		return
	}

	reply(conn, ws.NewStatusEnvelope(ws.NamespaceNotifications, ws.EventNotificationStatus))
}

// HandleDisconnect removes the dropped connection's entry, if any
func (g *NotifyGateway) HandleDisconnect(conn ws.Conn) {
	g.registry.Remove(conn)
}

// stageLookupError classifies a failed stage-row lookup: a missing row is a
// deployment defect, everything else is passed through
func stageLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrStageRowsMissing
	}
	return err
}

// reply sends a server->client envelope, tolerating a connection that went
// away in the meantime
func reply(conn ws.Conn, env *ws.Envelope) {
	if err := conn.Send(env); err != nil {
		log.Printf("ws reply dropped: %v", err)
	}
}

// sendError wraps a rejection into an ERROR envelope on the same connection
func sendError(conn ws.Conn, namespace string, err error) {
	reply(conn, ws.NewErrorEnvelope(namespace, err.Error()))
}
