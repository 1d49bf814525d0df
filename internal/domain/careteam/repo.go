package careteam

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("care team membership not found")
	ErrAlreadyMember     = errors.New("user already has an active membership for this patient")
	ErrInvalidTransition = errors.New("membership is already in that status")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrInvalidRequest    = errors.New("invalid care team request")
)

type Repository interface {
	Create(ctx context.Context, m *Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	// FindActive returns ErrNotFound when the pair has no active membership.
	FindActive(ctx context.Context, patientID, userID uuid.UUID) (*Membership, error)
	Update(ctx context.Context, m *Membership) error
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Membership, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Membership, int, error)
}
