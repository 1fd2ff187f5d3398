package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/gateway"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

// ErrUnknownSession is returned when a producer targets a session id that
// does not exist
var ErrUnknownSession = errors.New("session does not exist")

type sessionRepo interface {
	FindByID(id uuid.UUID) (*model.Session, error)
	UpdateVerificationStage(id, stageID uuid.UUID) error
	FindVerificationStageByName(name model.VerificationStageName) (*model.VerificationStage, error)
}

// broadcaster is the outward-facing half of the verification gateway
type broadcaster interface {
	Broadcast(sessionID uuid.UUID) error
}

// SessionService is the session authority's entry point: persist a
// verification-stage change, then broadcast it to subscribed devices
type SessionService struct {
	sessions sessionRepo
	gateway  broadcaster
}

func NewSessionService(sessions sessionRepo, gw broadcaster) *SessionService {
	return &SessionService{
		sessions: sessions,
		gateway:  gw,
	}
}

// AdvanceVerificationStage moves the session to the named stage and notifies
// every watcher. The broadcast re-reads the session, so watchers always see
// the persisted stage, never this call's argument.
func (s *SessionService) AdvanceVerificationStage(sessionID uuid.UUID, stage model.VerificationStageName) (*model.Session, error) {
	stageRow, err := s.sessions.FindVerificationStageByName(stage)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("unknown verification stage %q", stage)
		}
		return nil, err
	}

	if _, err := s.sessions.FindByID(sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, err
	}

	if err := s.sessions.UpdateVerificationStage(sessionID, stageRow.ID); err != nil {
		return nil, err
	}

	if err := s.gateway.Broadcast(sessionID); err != nil && !errors.Is(err, gateway.ErrSessionNotFound) {
		// Watchers will re-sync on their next subscribe; the persisted
		// stage is already correct
		log.Printf("⚠️ Broadcast for session %s failed: %v", sessionID, err)
	}

	return s.sessions.FindByID(sessionID)
}
