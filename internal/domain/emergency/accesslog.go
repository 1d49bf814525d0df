package emergency

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/metrics"
)

// AccessLog is an append-only sink for access records.
type AccessLog interface {
	Append(ctx context.Context, rec AccessRecord) error
}

type AccessLogReader interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]AccessRecord, error)
}

// Sink names an AccessLog for logs and metrics.
type Sink struct {
	Name string
	Log  AccessLog
}

// Fanout writes to a primary log, whose failure is the caller's failure,
// and then to mirrors, whose failures are only logged and counted.
type Fanout struct {
	primary Sink
	mirrors []Sink
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewFanout(logger zerolog.Logger, m *metrics.Metrics, primary Sink, mirrors ...Sink) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors, logger: logger, metrics: m}
}

func (f *Fanout) Append(ctx context.Context, rec AccessRecord) error {
	if err := f.primary.Log.Append(ctx, rec); err != nil {
		f.metrics.AuditFailure(f.primary.Name)
		return err
	}
	for _, m := range f.mirrors {
		if err := m.Log.Append(ctx, rec); err != nil {
			f.metrics.AuditFailure(m.Name)
			f.logger.Warn().Err(err).
				Str("sink", m.Name).
				Str("access_id", rec.ID.String()).
				Msg("mirror emergency access record")
		}
	}
	return nil
}
