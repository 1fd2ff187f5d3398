package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/config"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Load config
	cfg := config.Load()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	seedStages(db)
	devices := seedDevices(db)
	seedPendingSession(db, devices)
	seedQueuedNotifications(db, devices)

	log.Println("🎉 Seeding completed!")
}

// seedStages makes sure the stage rows exist; the gateway treats missing
// rows as a fatal configuration error
func seedStages(db *gorm.DB) {
	for _, name := range []model.StageName{model.StageCreated, model.StageSent, model.StageArrived} {
		var existing model.NotificationStage
		if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&model.NotificationStage{ID: uuid.New(), Name: name}).Error; err != nil {
			log.Fatalf("❌ Failed to seed notification stage %s: %v", name, err)
		}
		log.Printf("✅ Seeded notification stage: %s", name)
	}

	for _, name := range []model.VerificationStageName{model.VerificationRequired, model.VerificationNotRequired, model.VerificationCompleted} {
		var existing model.VerificationStage
		if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&model.VerificationStage{ID: uuid.New(), Name: name}).Error; err != nil {
			log.Fatalf("❌ Failed to seed verification stage %s: %v", name, err)
		}
		log.Printf("✅ Seeded verification stage: %s", name)
	}
}

func seedDevices(db *gorm.DB) []model.Device {
	log.Println("🌱 Seeding 3 demo devices...")

	accountID := uuid.New()
	platforms := []string{"android", "ios", "web"}

	devices := make([]model.Device, 0, len(platforms))
	for i, platform := range platforms {
		name := fmt.Sprintf("demo-device-%d", i+1)

		var existing model.Device
		if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
			devices = append(devices, existing)
			continue
		}

		device := model.Device{
			ID:        uuid.New(),
			AccountID: accountID,
			Name:      name,
			Platform:  platform,
		}
		if err := db.Create(&device).Error; err != nil {
			log.Printf("❌ Failed to create device %s: %v", name, err)
			continue
		}
		log.Printf("✅ Created device: %s | ID: %s | Platform: %s", name, device.ID, platform)
		devices = append(devices, device)
	}
	return devices
}

// seedPendingSession creates one session awaiting multi-factor verification
// so the verification flow can be exercised end to end
func seedPendingSession(db *gorm.DB, devices []model.Device) {
	if len(devices) == 0 {
		return
	}

	var required model.VerificationStage
	if err := db.Where("name = ?", model.VerificationRequired).First(&required).Error; err != nil {
		log.Printf("❌ REQUIRED verification stage missing: %v", err)
		return
	}

	var count int64
	db.Model(&model.Session{}).Where("device_id = ?", devices[0].ID).Count(&count)
	if count > 0 {
		return
	}

	session := model.Session{
		ID:                  uuid.New(),
		DeviceID:            devices[0].ID,
		AccountID:           devices[0].AccountID,
		VerificationStageID: required.ID,
		ExpiresAt:           time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(&session).Error; err != nil {
		log.Printf("❌ Failed to create session: %v", err)
		return
	}
	log.Printf("✅ Created pending session: %s (device %s)", session.ID, devices[0].ID)
}

// seedQueuedNotifications leaves a couple of CREATED notifications behind so
// the replay-on-subscribe path has something to deliver
func seedQueuedNotifications(db *gorm.DB, devices []model.Device) {
	if len(devices) == 0 {
		return
	}

	var created model.NotificationStage
	if err := db.Where("name = ?", model.StageCreated).First(&created).Error; err != nil {
		log.Printf("❌ CREATED notification stage missing: %v", err)
		return
	}

	var count int64
	db.Model(&model.PushNotification{}).Where("recipient_device_id = ?", devices[0].ID).Count(&count)
	if count > 0 {
		return
	}

	for i := 1; i <= 2; i++ {
		payload, _ := json.Marshal(map[string]string{
			"title": fmt.Sprintf("A vault was shared with you (%d)", i),
			"kind":  "vault_invitation",
		})

		n := model.PushNotification{
			ID:                uuid.New(),
			Payload:           payload,
			RecipientDeviceID: devices[0].ID,
			StageID:           created.ID,
		}
		if err := db.Create(&n).Error; err != nil {
			log.Printf("❌ Failed to create notification: %v", err)
			continue
		}
		log.Printf("✅ Queued notification %s for device %s", n.ID, devices[0].ID)
	}
}
