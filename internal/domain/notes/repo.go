package notes

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("note not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrEmptyBody       = errors.New("note body is required")
	ErrBodyTooLong     = errors.New("note body is too long")
)

// ListFilter narrows a patient's notes. A nil AuthorID lists every author.
type ListFilter struct {
	PatientID uuid.UUID
	AuthorID  *uuid.UUID
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Note, int, error)
}
