package careteam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

// Service manages care-team memberships. Membership never grants access to
// a patient's data; it only feeds "my patients" and the care-team view.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) authorize(caller auth.Caller) error {
	return auth.AuthorizeFields(caller.Role, auth.FieldCareTeam)
}

func (s *Service) AddMember(ctx context.Context, caller auth.Caller, patientID uuid.UUID, req AddMemberRequest) (*Membership, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.RoleLabel) == "" {
		return nil, fmt.Errorf("%w: role_label is required", ErrInvalidRequest)
	}

	if _, err := s.repo.FindActive(ctx, patientID, req.UserID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	m := &Membership{
		ID:          uuid.New(),
		PatientID:   patientID,
		UserID:      req.UserID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		RoleLabel:   strings.TrimSpace(req.RoleLabel),
		Status:      StatusActive,
		AssignedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("membership_id", m.ID.String()).
		Str("patient_id", patientID.String()).
		Str("by", caller.ID.String()).
		Msg("care team member added")
	return m, nil
}

func (s *Service) Deactivate(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Membership, error) {
	return s.transition(ctx, caller, id, StatusInactive)
}

// Reactivate fails with ErrAlreadyMember if the same user has since been
// added again with a new active membership.
func (s *Service) Reactivate(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Membership, error) {
	return s.transition(ctx, caller, id, StatusActive)
}

func (s *Service) transition(ctx context.Context, caller auth.Caller, id uuid.UUID, to Status) (*Membership, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == to {
		return nil, ErrInvalidTransition
	}
	if to == StatusActive {
		if _, err := s.repo.FindActive(ctx, m.PatientID, m.UserID); err == nil {
			return nil, ErrAlreadyMember
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	m.Status = to
	m.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Relabel(ctx context.Context, caller auth.Caller, id uuid.UUID, label string) (*Membership, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: role_label is required", ErrInvalidRequest)
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.RoleLabel = label
	m.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListActive(ctx context.Context, patientID uuid.UUID) ([]*Membership, error) {
	return s.repo.ListActiveByPatient(ctx, patientID)
}

// PatientsFor lists the caller's active memberships, newest first.
func (s *Service) PatientsFor(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	return s.repo.ListActiveByUser(ctx, userID, limit, offset)
}
