package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/internal/platform/metrics"
)

// Service evaluates every read and mutation against the caller's note
// policy before touching the repository.
type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, logger: logger, metrics: m, now: time.Now}
}

func (s *Service) authorize(caller auth.Caller, action auth.Action, n *Note) error {
	err := auth.Authorize(caller, action, n)
	if err != nil {
		s.metrics.Denied(caller.Role.String(), auth.ResourceNote.String())
	}
	return err
}

func checkBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len(body) > MaxBodyLength {
		return "", ErrBodyTooLong
	}
	return body, nil
}

// Create writes a note authored by the caller.
func (s *Service) Create(ctx context.Context, caller auth.Caller, patientID uuid.UUID, req WriteRequest) (*Note, error) {
	body, err := checkBody(req.Body)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	n := &Note{
		ID:        uuid.New(),
		PatientID: patientID,
		AuthorID:  caller.ID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.authorize(caller, auth.ActionCreate, n); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info().Str("note_id", n.ID.String()).Str("patient_id", patientID.String()).Msg("note created")
	return n, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, auth.ActionRead, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Caller, id uuid.UUID, req WriteRequest) (*Note, error) {
	body, err := checkBody(req.Body)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, auth.ActionUpdate, n); err != nil {
		return nil, err
	}
	n.Body = body
	n.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, auth.ActionDelete, n); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("note_id", id.String()).Str("by", caller.ID.String()).Msg("note deleted")
	return nil
}

// List returns the patient's notes the caller may read. Own-scope callers
// only see their own notes.
func (s *Service) List(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	p := caller.Capabilities().Notes
	if !p.Read {
		s.metrics.Denied(caller.Role.String(), auth.ResourceNote.String())
		return nil, 0, fmt.Errorf("%w: %s may not read notes", auth.ErrForbidden, caller.Role)
	}
	f := ListFilter{PatientID: patientID, Limit: limit, Offset: offset}
	if p.Scope == auth.ScopeOwn {
		f.AuthorID = &caller.ID
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := items[:0]
	for _, n := range items {
		if auth.CanActOnResource(caller.Role, caller.ID, auth.ActionRead, n) {
			out = append(out, n)
		}
	}
	return out, total, nil
}
