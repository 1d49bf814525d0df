package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/internal/platform/blobstore"
	"github.com/fichamed/fichamed/internal/platform/metrics"
)

type Service struct {
	repo    Repository
	blobs   blobstore.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, blobs blobstore.Store, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger, metrics: m, now: time.Now}
}

func (s *Service) authorize(caller auth.Caller, action auth.Action, d *Document) error {
	err := auth.Authorize(caller, action, d)
	if err != nil {
		s.metrics.Denied(caller.Role.String(), auth.ResourceDocument.String())
	}
	return err
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 255 {
		return "", ErrInvalidTitle
	}
	return title, nil
}

// Upload stores content and records the caller as uploader. The blob is
// removed again if the metadata cannot be written.
func (s *Service) Upload(ctx context.Context, caller auth.Caller, patientID uuid.UUID, title, contentType string, content io.Reader) (*Document, error) {
	title, err := checkTitle(title)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d := &Document{
		ID:          uuid.New(),
		PatientID:   patientID,
		UploaderID:  caller.ID,
		Title:       title,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.authorize(caller, auth.ActionCreate, d); err != nil {
		return nil, err
	}
	if !blobstore.AllowedContentType(contentType) {
		return nil, blobstore.ErrInvalidContentType
	}

	d.ObjectKey = objectKey(patientID, d.ID)
	obj, err := s.blobs.Put(ctx, d.ObjectKey, contentType, content)
	if err != nil {
		return nil, fmt.Errorf("store document content: %w", err)
	}
	d.SizeBytes = obj.Size
	d.SHA256 = obj.SHA256

	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.blobs.Delete(ctx, d.ObjectKey); derr != nil {
			s.logger.Warn().Err(derr).Str("object_key", d.ObjectKey).Msg("remove orphaned document content")
		}
		return nil, err
	}

	s.logger.Info().
		Str("document_id", d.ID.String()).
		Str("patient_id", patientID.String()).
		Int64("size", d.SizeBytes).
		Msg("document uploaded")
	return d, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, auth.ActionRead, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Open returns the document and its content. The caller closes the reader.
func (s *Service) Open(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Document, io.ReadCloser, error) {
	d, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, d.ObjectKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

func (s *Service) Rename(ctx context.Context, caller auth.Caller, id uuid.UUID, title string) (*Document, error) {
	title, err := checkTitle(title)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, auth.ActionUpdate, d); err != nil {
		return nil, err
	}
	d.Title = title
	d.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateTitle(ctx, id, d.Title, d.UpdatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes the metadata first so a failed blob delete leaves only
// unreachable content behind.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, auth.ActionDelete, d); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, d.ObjectKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("object_key", d.ObjectKey).Msg("delete document content")
	}
	s.logger.Info().Str("document_id", id.String()).Str("by", caller.ID.String()).Msg("document deleted")
	return nil
}

// List returns the patient's documents the caller may read.
func (s *Service) List(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	p := caller.Capabilities().Documents
	if !p.Read {
		s.metrics.Denied(caller.Role.String(), auth.ResourceDocument.String())
		return nil, 0, fmt.Errorf("%w: %s may not read documents", auth.ErrForbidden, caller.Role)
	}
	f := ListFilter{PatientID: patientID, Limit: limit, Offset: offset}
	if p.Scope == auth.ScopeOwn {
		f.UploaderID = &caller.ID
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := items[:0]
	for _, d := range items {
		if auth.CanActOnResource(caller.Role, caller.ID, auth.ActionRead, d) {
			out = append(out, d)
		}
	}
	return out, total, nil
}
