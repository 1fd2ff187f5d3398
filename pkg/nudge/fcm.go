package nudge

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"google.golang.org/api/option"
)

// FCMNudger sends a best-effort data push when a notification is created for
// a device that has no live socket connection, so mobile devices wake up and
// reconnect. Delivery still happens over the socket replay, never over FCM.
type FCMNudger struct {
	client *messaging.Client
}

// NewFCMNudger creates the nudger, or nil when FCM is not configured
func NewFCMNudger(credentialsFile string) (*FCMNudger, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, offline nudges disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		// Log warning instead of error to not block server startup
		log.Printf("⚠️ Failed to initialize Firebase app: %v (offline nudges disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &FCMNudger{client: client}, nil
}

// Nudge asks the device to reconnect and pick up its pending notifications
func (n *FCMNudger) Nudge(ctx context.Context, device *model.Device, notificationID uuid.UUID) error {
	if n == nil || n.client == nil {
		return nil
	}
	if device.FCMToken == "" {
		return nil
	}

	message := &messaging.Message{
		Token: device.FCMToken,
		Data: map[string]string{
			"type":            "pending_notification",
			"notification_id": notificationID.String(),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "5",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
				},
			},
		},
	}

	if _, err := n.client.Send(ctx, message); err != nil {
		return fmt.Errorf("error sending nudge message: %w", err)
	}
	return nil
}
