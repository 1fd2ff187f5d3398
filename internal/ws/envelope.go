package ws

import "encoding/json"

// Namespaces group related events into one routing domain
const (
	NamespaceNotifications = "push-notifications"
	NamespaceVerification  = "session-verification"
)

// Push-notification namespace events
const (
	// client -> server
	EventSubscribeNotify   = "SUBSCRIBE_NOTIFY"
	EventUnsubscribeNotify = "UNSUBSCRIBE_NOTIFY"
	EventConfirmArrived    = "CONFIRM_ARRIVED_NOTIFICATION"
	// server -> client
	EventSubscribeStatus     = "SUBSCRIBE_STATUS"
	EventArrivedNotification = "ARRIVED_NOTIFICATION"
	EventNotificationStatus  = "NOTIFICATION_STATUS"
)

// Session-verification namespace events
const (
	// client -> server
	EventSubVerificationStage   = "SUB_CHANGE_SESSION_VERIFICATION_STAGE"
	EventUnsubVerificationStage = "UNSUB_CHANGE_SESSION_VERIFICATION_STAGE"
	// server -> client
	EventSubStatus                = "SUB_STATUS"
	EventVerificationStageChanged = "CHANGED_SESSION_VERIFICATION_STAGE"
)

// EventError is sent on the offending connection when a client-initiated
// operation is rejected
const EventError = "ERROR"

// StatusOK is the only status value the protocol uses
const StatusOK = "ok"

// Envelope is the wire shape of every frame, in both directions
type Envelope struct {
	Namespace string          `json:"namespace"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  any             `json:"metadata,omitempty"`
	Status    string          `json:"status,omitempty"`
	Error     *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError carries a client-visible rejection message
type EnvelopeError struct {
	Message string `json:"message"`
}

// NewStatusEnvelope builds a server->client status reply
func NewStatusEnvelope(namespace, event string) *Envelope {
	return &Envelope{
		Namespace: namespace,
		Event:     event,
		Status:    StatusOK,
	}
}

// NewErrorEnvelope builds a server->client ERROR reply
func NewErrorEnvelope(namespace, message string) *Envelope {
	return &Envelope{
		Namespace: namespace,
		Event:     EventError,
		Error:     &EnvelopeError{Message: message},
	}
}
