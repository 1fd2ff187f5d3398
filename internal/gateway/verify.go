package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/ws"
	"gorm.io/gorm"
)

// sessionStore is the slice of the session repository the verification
// gateway needs
type sessionStore interface {
	FindByID(id uuid.UUID) (*model.Session, error)
}

// VerifySubscription is the registry payload for one verification watcher
type VerifySubscription struct {
	DeviceID  uuid.UUID
	SessionID uuid.UUID
}

// VerifyGateway broadcasts session verification-stage changes to the devices
// watching a session during a multi-factor approval flow
type VerifyGateway struct {
	registry *ws.Registry[VerifySubscription]
	devices  deviceStore
	sessions sessionStore
}

// NewVerifyGateway creates the session verification gateway
func NewVerifyGateway(registry *ws.Registry[VerifySubscription], devices deviceStore, sessions sessionStore) *VerifyGateway {
	return &VerifyGateway{
		registry: registry,
		devices:  devices,
		sessions: sessions,
	}
}

// RegisterRoutes binds the gateway's handlers into the dispatch table
func (g *VerifyGateway) RegisterRoutes(d *ws.Dispatcher) {
	d.Register(ws.NamespaceVerification, ws.EventSubVerificationStage, g.HandleSubscribe)
	d.Register(ws.NamespaceVerification, ws.EventUnsubVerificationStage, g.HandleUnsubscribe)
	d.OnDisconnect(g.HandleDisconnect)
}

type subscribeVerificationPayload struct {
	DeviceUUID  uuid.UUID `json:"deviceUuid"`
	SessionUUID uuid.UUID `json:"sessionUuid"`
}

type stageChangedPayload struct {
	Stage model.VerificationStageName `json:"stage"`
}

// HandleSubscribe registers the connection for a session's stage changes.
// Eligibility is checked here and only here: a session that expires while a
// device stays subscribed is not proactively unsubscribed, the device simply
// stops hearing about it once the session authority stops changing it.
func (g *VerifyGateway) HandleSubscribe(conn ws.Conn, data json.RawMessage) {
	var payload subscribeVerificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("verify: dropping malformed subscribe payload: %v", err)
		return
	}

	if _, err := g.devices.FindByID(payload.DeviceUUID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(conn, ws.NamespaceVerification, ErrDeviceNotFound)
			return
		}
		log.Printf("verify: device lookup failed: %v", err)
		sendError(conn, ws.NamespaceVerification, err)
		return
	}

	session, err := g.sessions.FindByID(payload.SessionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(conn, ws.NamespaceVerification, ErrSessionNotFound)
			return
		}
		log.Printf("verify: session lookup failed: %v", err)
		sendError(conn, ws.NamespaceVerification, err)
		return
	}

	if session.IsExpired(time.Now()) {
		sendError(conn, ws.NamespaceVerification, ErrSessionExpired)
		return
	}
	if session.VerificationStage.Name != model.VerificationRequired {
		sendError(conn, ws.NamespaceVerification, ErrSessionNotAwaitingVerification)
		return
	}

	if !g.registry.Set(conn, VerifySubscription{
		DeviceID:  payload.DeviceUUID,
		SessionID: payload.SessionUUID,
	}) {
		// Connection died while the lookups were in flight
		return
	}

	reply(conn, ws.NewStatusEnvelope(ws.NamespaceVerification, ws.EventSubStatus))
}

// HandleUnsubscribe removes the connection's entry, if any. Always ok.
func (g *VerifyGateway) HandleUnsubscribe(conn ws.Conn, _ json.RawMessage) {
	g.registry.Remove(conn)
	reply(conn, ws.NewStatusEnvelope(ws.NamespaceVerification, ws.EventSubStatus))
}

// HandleDisconnect removes the dropped connection's entry, if any
func (g *VerifyGateway) HandleDisconnect(conn ws.Conn) {
	g.registry.Remove(conn)
}

// Broadcast pushes the session's current verification stage to every
// connection subscribed to it. Invoked by the session authority after it
// persists a stage change; the session is re-read here rather than trusting
// the caller's snapshot.
func (g *VerifyGateway) Broadcast(sessionID uuid.UUID) error {
	session, err := g.sessions.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	data, err := json.Marshal(stageChangedPayload{Stage: session.VerificationStage.Name})
	if err != nil {
		return err
	}

	env := &ws.Envelope{
		Namespace: ws.NamespaceVerification,
		Event:     ws.EventVerificationStageChanged,
		Data:      data,
	}

	watchers := g.registry.Find(func(sub VerifySubscription) bool {
		return sub.SessionID == sessionID
	})
	for _, watcher := range watchers {
		if err := watcher.Conn.Send(env); err != nil {
			log.Printf("verify: broadcast to watcher dropped: %v", err)
		}
	}
	return nil
}
