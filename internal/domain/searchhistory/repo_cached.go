package searchhistory

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CachedRepository appends to a durable primary and a capped hot cache.
// Reads come from the cache and fall back to the primary when it fails or
// holds fewer than the requested patients.
type CachedRepository struct {
	primary Repository
	cache   Repository
	logger  zerolog.Logger
}

func NewCachedRepository(primary, cache Repository, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{primary: primary, cache: cache, logger: logger}
}

func (r *CachedRepository) Append(ctx context.Context, e Entry) error {
	if err := r.primary.Append(ctx, e); err != nil {
		return err
	}
	if err := r.cache.Append(ctx, e); err != nil {
		r.logger.Warn().Err(err).Str("user_id", e.UserID.String()).Msg("cache search entry")
	}
	return nil
}

func (r *CachedRepository) Recent(ctx context.Context, userID uuid.UUID, n int) ([]Entry, error) {
	cached, err := r.cache.Recent(ctx, userID, n)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("read search history cache")
		return r.primary.Recent(ctx, userID, n)
	}
	if len(cached) >= n {
		return cached, nil
	}

	// A short cache may have been flushed or evicted; the primary decides.
	entries, err := r.primary.Recent(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	if len(entries) > len(cached) {
		r.backfill(ctx, userID, cached, entries)
	}
	return entries, nil
}

// backfill copies the patients missing from the cache, oldest first.
func (r *CachedRepository) backfill(ctx context.Context, userID uuid.UUID, cached, entries []Entry) {
	have := make(map[uuid.UUID]bool, len(cached))
	for _, e := range cached {
		have[e.PatientID] = true
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if have[entries[i].PatientID] {
			continue
		}
		if err := r.cache.Append(ctx, entries[i]); err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("backfill search history cache")
			return
		}
	}
}
