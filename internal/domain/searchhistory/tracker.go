package searchhistory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/metrics"
	"github.com/fichamed/fichamed/pkg/rut"
)

type Tracker struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTracker(repo Repository, logger zerolog.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{repo: repo, logger: logger, metrics: m, now: time.Now}
}

// Record appends a successful lookup of patientID by userID.
func (t *Tracker) Record(ctx context.Context, userID, patientID uuid.UUID, patientRUT string) error {
	e := Entry{
		ID:         uuid.New(),
		UserID:     userID,
		PatientID:  patientID,
		PatientRUT: rut.Normalize(patientRUT),
		SearchedAt: t.now().UTC(),
	}
	if err := t.repo.Append(ctx, e); err != nil {
		return err
	}
	t.metrics.SearchRecorded()
	t.logger.Debug().
		Str("user_id", userID.String()).
		Str("patient_id", patientID.String()).
		Msg("search recorded")
	return nil
}

// Recent returns the user's ranked view: one entry per patient, newest
// first, at most MaxRecent.
func (t *Tracker) Recent(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	entries, err := t.repo.Recent(ctx, userID, MaxRecent)
	if err != nil {
		return nil, err
	}
	return Rank(entries, MaxRecent), nil
}
