package searchhistory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/metrics"
)

type memRepo struct {
	entries []Entry
	err     error
}

func (m *memRepo) Append(_ context.Context, e Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRepo) Recent(_ context.Context, userID uuid.UUID, n int) ([]Entry, error) {
	var all []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			all = append(all, m.entries[i])
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].SearchedAt.After(all[j].SearchedAt) })

	out := []Entry{}
	seen := map[uuid.UUID]bool{}
	for _, e := range all {
		if seen[e.PatientID] || len(out) == n {
			continue
		}
		seen[e.PatientID] = true
		out = append(out, e)
	}
	return out, nil
}

func newTestTracker(repo Repository, m *metrics.Metrics) *Tracker {
	tr := NewTracker(repo, zerolog.Nop(), m)
	n := 0
	tr.now = func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Minute)
	}
	return tr
}

func TestTracker_RecordAndRecent(t *testing.T) {
	repo, m := &memRepo{}, metrics.New()
	tr := newTestTracker(repo, m)
	user, other := uuid.New(), uuid.New()
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	for _, step := range []struct {
		user, patient uuid.UUID
	}{{user, a}, {user, b}, {user, a}, {other, b}} {
		if err := tr.Record(ctx, step.user, step.patient, "12.345.678-5"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := tr.Recent(ctx, user)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].PatientID != a || got[1].PatientID != b {
		t.Fatalf("expected [A, B], got %+v", got)
	}
	if got[0].PatientRUT != "123456785" {
		t.Errorf("expected normalized rut, got %q", got[0].PatientRUT)
	}
	if v := testutil.ToFloat64(m.SearchesRecorded); v != 4 {
		t.Errorf("expected 4 recorded searches, got %v", v)
	}
}

func TestTracker_RecordError(t *testing.T) {
	tr := newTestTracker(&memRepo{err: errors.New("redis down")}, nil)
	if err := tr.Record(context.Background(), uuid.New(), uuid.New(), "123456785"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTracker_RepeatedPatientKeepsOlderOnes(t *testing.T) {
	tr := newTestTracker(&memRepo{}, nil)
	user := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	for _, p := range []uuid.UUID{b, c} {
		if err := tr.Record(ctx, user, p, "123456785"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	for i := 0; i < 120; i++ {
		if err := tr.Record(ctx, user, a, "123456785"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := tr.Recent(ctx, user)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].PatientID != a || got[1].PatientID != c || got[2].PatientID != b {
		t.Fatalf("expected [A, C, B], got %+v", got)
	}
}
