package emergency

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/domain/patient"
)

// PatientIDPrefix marks a token that embeds the patient id directly.
const PatientIDPrefix = "PATIENT:"

type PatientLookup interface {
	FindByQRCode(ctx context.Context, code string) (*patient.Record, error)
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Record, error)
}

// Strategy maps a scanned token to a patient. It reports matched=false,
// with a nil error, when the token does not identify a patient its way.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, lookup PatientLookup, token string) (rec *patient.Record, matched bool, err error)
}

// QRCodeStrategy matches the token against stored QR codes.
type QRCodeStrategy struct{}

func (QRCodeStrategy) Name() string { return "qr_code" }

func (QRCodeStrategy) Resolve(ctx context.Context, lookup PatientLookup, token string) (*patient.Record, bool, error) {
	return found(lookup.FindByQRCode(ctx, token))
}

// PatientIDStrategy derives the patient from "PATIENT:<uuid>".
type PatientIDStrategy struct{}

func (PatientIDStrategy) Name() string { return "patient_id" }

func (PatientIDStrategy) Resolve(ctx context.Context, lookup PatientLookup, token string) (*patient.Record, bool, error) {
	raw, ok := strings.CutPrefix(token, PatientIDPrefix)
	if !ok {
		return nil, false, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false, nil
	}
	return found(lookup.FindByID(ctx, id))
}

func found(rec *patient.Record, err error) (*patient.Record, bool, error) {
	if errors.Is(err, patient.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// DefaultStrategies is the lookup order: stored QR code, then embedded id.
func DefaultStrategies() []Strategy {
	return []Strategy{QRCodeStrategy{}, PatientIDStrategy{}}
}
