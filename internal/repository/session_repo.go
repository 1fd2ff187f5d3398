package repository

import (
	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"gorm.io/gorm"
)

// SessionRepository handles database operations for Session
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID finds a session by ID with its verification stage joined
func (r *SessionRepository) FindByID(id uuid.UUID) (*model.Session, error) {
	var session model.Session
	err := r.db.
		Preload("VerificationStage").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateVerificationStage points the session at a new verification stage row
func (r *SessionRepository) UpdateVerificationStage(id, stageID uuid.UUID) error {
	return r.db.Model(&model.Session{}).
		Where("id = ?", id).
		Update("verification_stage_id", stageID).Error
}

// FindVerificationStageByName looks up a verification stage row by name
func (r *SessionRepository) FindVerificationStageByName(name model.VerificationStageName) (*model.VerificationStage, error) {
	var stage model.VerificationStage
	err := r.db.Where("name = ?", name).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}
