package models

import (
	"time"

	"gorm.io/datatypes"
)

type SagaName string

const (
	SagaCreateUser     SagaName = "create_user"
	SagaUpdateProfile  SagaName = "update_profile"
	SagaCompleteLesson SagaName = "complete_lesson"
)

// Saga step names. Identity steps are repaired through RepairUser, append-only
// steps are replayed from the journaled payload.
const (
	StepAssignDefaultRole   = "assign_default_role"
	StepCreateProfile       = "create_profile"
	StepCreateSettings      = "create_settings"
	StepAppendActivity      = "append_activity"
	StepAppendNotification  = "append_notification"
	StepAppendAudit         = "append_audit"
	StepRecomputeEnrollment = "recompute_enrollment"
	StepAwardAchievement    = "award_achievement"
)

type SagaStepStatus string

const (
	SagaStepFailed    SagaStepStatus = "failed"
	SagaStepResolved  SagaStepStatus = "resolved"
	SagaStepAbandoned SagaStepStatus = "abandoned"
)

// SagaStep journals a step that failed after an earlier step of the same
// operation had already committed.
type SagaStep struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	SagaID    string         `json:"saga_id" gorm:"not null;index;size:36"`
	Saga      SagaName       `json:"saga" gorm:"not null;size:50"`
	Step      string         `json:"step" gorm:"not null;size:50"`
	UserID    string         `json:"user_id" gorm:"index;size:36"`
	EntityID  string         `json:"entity_id" gorm:"size:36"`
	Status    SagaStepStatus `json:"status" gorm:"not null;default:failed;index;size:20"`
	Attempts  int            `json:"attempts" gorm:"default:0"`
	LastError string         `json:"last_error" gorm:"type:text"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SagaStep) TableName() string {
	return "saga_steps"
}
