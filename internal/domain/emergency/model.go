package emergency

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidIdentity  = errors.New("accessor rut is not valid")
	ErrPatientNotFound  = errors.New("no patient matches the scanned code")
	ErrAuditWriteFailed = errors.New("emergency access could not be recorded")
)

// AccessRecord is one emergency read of a patient record. Records are
// append-only.
type AccessRecord struct {
	ID          uuid.UUID `json:"id"`
	AccessorRUT string    `json:"accessor_rut"`
	PatientID   uuid.UUID `json:"patient_id"`
	AccessedAt  time.Time `json:"accessed_at"`
}

type AccessRequest struct {
	Token       string `json:"token" validate:"required,max=256"`
	AccessorRUT string `json:"accessor_rut" validate:"required,max=16"`
}
