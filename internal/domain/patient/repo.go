package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateRUT = errors.New("a patient with this rut already exists")
	ErrInvalidRUT   = errors.New("invalid rut")
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrInvalidPatch = errors.New("invalid patch")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByRUT(ctx context.Context, rut string) (*Patient, error)
	GetByQRCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}
