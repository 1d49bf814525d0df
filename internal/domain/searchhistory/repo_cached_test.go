package searchhistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type failingRepo struct{}

func (failingRepo) Append(context.Context, Entry) error { return errors.New("cache down") }
func (failingRepo) Recent(context.Context, uuid.UUID, int) ([]Entry, error) {
	return nil, errors.New("cache down")
}

func TestCachedRepository_WritesBoth(t *testing.T) {
	primary, cache := &memRepo{}, &memRepo{}
	r := NewCachedRepository(primary, cache, zerolog.Nop())
	user := uuid.New()

	if err := r.Append(context.Background(), Entry{UserID: user, PatientID: uuid.New(), SearchedAt: t0}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(primary.entries) != 1 || len(cache.entries) != 1 {
		t.Fatalf("expected entry in both stores, got %d/%d", len(primary.entries), len(cache.entries))
	}
}

func TestCachedRepository_CacheFailureFallsBack(t *testing.T) {
	primary := &memRepo{}
	r := NewCachedRepository(primary, failingRepo{}, zerolog.Nop())
	user := uuid.New()

	if err := r.Append(context.Background(), Entry{UserID: user, PatientID: uuid.New(), SearchedAt: t0}); err != nil {
		t.Fatalf("cache failure must not fail append: %v", err)
	}
	got, err := r.Recent(context.Background(), user, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected primary read, got %d entries (%v)", len(got), err)
	}
}

func TestCachedRepository_PrimaryFailure(t *testing.T) {
	cache := &memRepo{}
	r := NewCachedRepository(failingRepo{}, cache, zerolog.Nop())
	if err := r.Append(context.Background(), Entry{UserID: uuid.New()}); err == nil {
		t.Fatal("expected primary error")
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache must not be written when primary fails")
	}
}

func TestCachedRepository_EmptyCacheReadsPrimaryAndBackfills(t *testing.T) {
	primary, cache := &memRepo{}, &memRepo{}
	user := uuid.New()
	a, b := uuid.New(), uuid.New()
	primary.entries = []Entry{
		{ID: uuid.New(), UserID: user, PatientID: a, SearchedAt: t0},
		{ID: uuid.New(), UserID: user, PatientID: b, SearchedAt: t0.Add(time.Minute)},
	}
	r := NewCachedRepository(primary, cache, zerolog.Nop())

	got, err := r.Recent(context.Background(), user, MaxRecent)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].PatientID != b || got[1].PatientID != a {
		t.Fatalf("expected [B, A] from primary, got %+v", got)
	}
	if len(cache.entries) != 2 || cache.entries[0].PatientID != a {
		t.Fatalf("expected cache backfilled oldest first, got %+v", cache.entries)
	}
}

func TestCachedRepository_FullCacheSkipsPrimary(t *testing.T) {
	cache := &memRepo{}
	user := uuid.New()
	for i := 0; i < 2; i++ {
		cache.entries = append(cache.entries, Entry{UserID: user, PatientID: uuid.New(), SearchedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	r := NewCachedRepository(failingRepo{}, cache, zerolog.Nop())

	got, err := r.Recent(context.Background(), user, 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected cached entries without primary, got %d (%v)", len(got), err)
	}
}
