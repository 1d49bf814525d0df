package patient

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/domain/careteam"
	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/pkg/rut"
)

type CareTeamLister interface {
	ListActive(ctx context.Context, patientID uuid.UUID) ([]*careteam.Membership, error)
}

type SearchRecorder interface {
	Record(ctx context.Context, userID, patientID uuid.UUID, patientRUT string) error
}

type Service struct {
	repo     Repository
	careTeam CareTeamLister
	searches SearchRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, careTeam CareTeamLister, searches SearchRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		careTeam: careTeam,
		searches: searches,
		logger:   logger,
		now:      time.Now,
	}
}

func newQRCode() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return "QR-" + strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// Create registers a patient. Only roles that can search patients may
// register them.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*Record, error) {
	if !caller.Capabilities().SearchPatients {
		return nil, fmt.Errorf("%w: %s may not register patients", auth.ErrForbidden, caller.Role)
	}
	if !rut.Validate(req.RUT) {
		return nil, ErrInvalidRUT
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPatch)
	}
	birth, err := parseDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	code, err := newQRCode()
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}

	now := s.now().UTC()
	p := &Patient{
		ID:                 uuid.New(),
		RUT:                rut.Normalize(req.RUT),
		QRCode:             &code,
		Name:               strings.TrimSpace(req.Name),
		BirthDate:          birth,
		Diagnosis:          emptyToNil(req.Diagnosis),
		Stage:              emptyToNil(req.Stage),
		Allergies:          []string{},
		CurrentMedications: []string{},
		EmergencyContacts:  []EmergencyContact{},
		Operations:         []Operation{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.record(ctx, p)
}

func (s *Service) record(ctx context.Context, p *Patient) (*Record, error) {
	team, err := s.careTeam.ListActive(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load care team: %w", err)
	}
	if team == nil {
		team = []*careteam.Membership{}
	}
	return &Record{Patient: *p, RUTDisplay: rut.Format(p.RUT), CareTeam: team}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, p)
}

// FindByID and FindByQRCode serve the emergency resolver.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.Get(ctx, id)
}

func (s *Service) FindByQRCode(ctx context.Context, code string) (*Record, error) {
	p, err := s.repo.GetByQRCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, p)
}

// FindByRUT looks a patient up by national id. The RUT is validated before
// any lookup. A successful lookup by a role that tracks search history is
// appended to the caller's history; a failed append is logged only.
func (s *Service) FindByRUT(ctx context.Context, caller auth.Caller, raw string) (*Record, error) {
	caps := caller.Capabilities()
	if !caps.SearchPatients {
		return nil, fmt.Errorf("%w: %s may not search patients", auth.ErrForbidden, caller.Role)
	}
	if !rut.Validate(raw) {
		return nil, ErrInvalidRUT
	}
	p, err := s.repo.GetByRUT(ctx, rut.Normalize(raw))
	if err != nil {
		return nil, err
	}

	if caps.TrackSearchHistory && s.searches != nil {
		if err := s.searches.Record(ctx, caller.ID, p.ID, p.RUT); err != nil {
			s.logger.Error().Err(err).
				Str("user_id", caller.ID.String()).
				Str("patient_id", p.ID.String()).
				Msg("record search history")
		}
	}
	return s.record(ctx, p)
}

// ApplyUpdate authorizes every field in the patch before writing any of
// them. The care team is edited through its own endpoints.
func (s *Service) ApplyUpdate(ctx context.Context, caller auth.Caller, id uuid.UUID, patch *Patch) (*Record, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	if err := auth.AuthorizeFields(caller.Role, fields...); err != nil {
		return nil, err
	}
	if len(patch.CareTeam) > 0 {
		return nil, fmt.Errorf("%w: care_team is edited through the care-team endpoints", ErrInvalidPatch)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: name may not be empty", ErrInvalidPatch)
	}
	if patch.RUT != nil {
		if !rut.Validate(*patch.RUT) {
			return nil, ErrInvalidRUT
		}
		normalized := rut.Normalize(*patch.RUT)
		patch.RUT = &normalized
	}
	if patch.EmergencyContacts != nil {
		contacts, err := normalizeContacts(*patch.EmergencyContacts)
		if err != nil {
			return nil, err
		}
		patch.EmergencyContacts = &contacts
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.apply(p); err != nil {
		return nil, err
	}
	ensureSlices(p)
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("by", caller.ID.String()).
		Strs("fields", fieldNames(fields)).
		Msg("patient record updated")
	return s.record(ctx, p)
}

func ensureSlices(p *Patient) {
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.CurrentMedications == nil {
		p.CurrentMedications = []string{}
	}
	if p.EmergencyContacts == nil {
		p.EmergencyContacts = []EmergencyContact{}
	}
	if p.Operations == nil {
		p.Operations = []Operation{}
	}
}

func fieldNames(fields []auth.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.String()
	}
	return out
}
