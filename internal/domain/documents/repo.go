package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidTitle    = errors.New("document title must be 1 to 255 characters")
)

type ListFilter struct {
	PatientID  uuid.UUID
	UploaderID *uuid.UUID
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Document, int, error)
}
