package careteam

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Membership links a user to a patient's care team. It is never deleted;
// removal moves it to StatusInactive.
type Membership struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	RoleLabel   string    `json:"role_label"`
	Status      Status    `json:"status"`
	AssignedAt  time.Time `json:"assigned_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *Membership) Active() bool { return m.Status == StatusActive }

type AddMemberRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	DisplayName string    `json:"display_name" validate:"required,max=255"`
	RoleLabel   string    `json:"role_label" validate:"required,max=128"`
}

type RelabelRequest struct {
	RoleLabel string `json:"role_label" validate:"required,max=128"`
}
