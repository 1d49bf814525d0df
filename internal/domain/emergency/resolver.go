package emergency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/domain/patient"
	"github.com/fichamed/fichamed/internal/platform/metrics"
	"github.com/fichamed/fichamed/pkg/rut"
)

// Resolver turns a scanned QR token plus the responder's RUT into the
// patient's emergency record. Every successful resolution appends its own
// AccessRecord, so repeated scans are never collapsed.
type Resolver struct {
	lookup     PatientLookup
	strategies []Strategy
	log        AccessLog
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	strict     bool
}

type Option func(*Resolver)

// WithStrictAudit makes a failed audit write fail the resolution with
// ErrAuditWriteFailed instead of returning the record anyway.
func WithStrictAudit(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithStrategies(s ...Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

func NewResolver(lookup PatientLookup, log AccessLog, logger zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:     lookup,
		strategies: DefaultStrategies(),
		log:        log,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, token, accessorRUT string) (*patient.Record, error) {
	if !rut.Validate(accessorRUT) {
		r.metrics.Resolution(metrics.OutcomeInvalidIdentity, "")
		return nil, ErrInvalidIdentity
	}

	token = strings.TrimSpace(token)
	rec, strategy, err := r.match(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		r.metrics.Resolution(metrics.OutcomeNotFound, "")
		return nil, ErrPatientNotFound
	}

	access := AccessRecord{
		ID:          uuid.New(),
		AccessorRUT: rut.Normalize(accessorRUT),
		PatientID:   rec.ID,
		AccessedAt:  r.now().UTC(),
	}
	if err := r.log.Append(ctx, access); err != nil {
		r.metrics.Resolution(metrics.OutcomeAuditFailed, strategy)
		r.logger.Error().Err(err).
			Str("patient_id", rec.ID.String()).
			Str("strategy", strategy).
			Bool("strict", r.strict).
			Msg("emergency access audit write failed")
		if r.strict {
			return nil, fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
		}
		return rec, nil
	}

	r.metrics.Resolution(metrics.OutcomeResolved, strategy)
	r.logger.Info().
		Str("access_id", access.ID.String()).
		Str("patient_id", rec.ID.String()).
		Str("strategy", strategy).
		Msg("emergency access")
	return rec, nil
}

func (r *Resolver) match(ctx context.Context, token string) (*patient.Record, string, error) {
	if token == "" {
		return nil, "", nil
	}
	for _, s := range r.strategies {
		rec, ok, err := s.Resolve(ctx, r.lookup, token)
		if err != nil {
			return nil, "", fmt.Errorf("resolve via %s: %w", s.Name(), err)
		}
		if ok {
			return rec, s.Name(), nil
		}
	}
	return nil, "", nil
}
