package gateway

import "errors"

// Gateway error taxonomy. The message text of client-facing errors is part
// of the wire contract: it is what a device sees inside an ERROR envelope.
var (
	// NotFound class
	ErrDeviceNotFound       = errors.New("The device was not found")
	ErrNotificationNotFound = errors.New("The push notification was not found")
	ErrSessionNotFound      = errors.New("The session was not found")
	ErrDeviceNotConnected   = errors.New("client device is not connected")

	// Forbidden class
	ErrSessionExpired = errors.New("The session is expired")

	// Conflict class
	ErrSessionNotAwaitingVerification = errors.New("The session is not awaiting verification")
	ErrNotificationNotSent            = errors.New("The push notification has not been sent to the device yet")
	ErrNotificationAlreadyArrived     = errors.New("The push notification was already confirmed as arrived")

	// Internal class: required stage rows are absent from the backing
	// store. A seed-data defect, not a per-request condition.
	ErrStageRowsMissing = errors.New("notification stage rows are missing from the backing store")

	// Internal class: the pending-notification replay hit a transient
	// failure; the subscription stands and the device may resubscribe
	ErrReplayFailed = errors.New("Queued notifications could not be replayed")
)
