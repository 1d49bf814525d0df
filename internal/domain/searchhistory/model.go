// Package searchhistory keeps the patients a user looked up by RUT and
// serves the ranked "recent searches" view.
package searchhistory

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxRecent is the size of the ranked view.
const MaxRecent = 5

// Entry is one RUT lookup that found a patient. Entries are only appended.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	PatientRUT string    `json:"patient_rut"`
	SearchedAt time.Time `json:"searched_at"`
}

// Rank collapses entries to one per patient, keeping the newest search,
// and returns at most limit of them newest first. Entries may arrive in
// any order; on equal timestamps the later entry wins.
func Rank(entries []Entry, limit int) []Entry {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	newest := make(map[uuid.UUID]int, len(entries))
	for i, e := range entries {
		j, seen := newest[e.PatientID]
		if !seen || !e.SearchedAt.Before(entries[j].SearchedAt) {
			newest[e.PatientID] = i
		}
	}

	out := make([]Entry, 0, len(newest))
	for _, i := range newest {
		out = append(out, entries[i])
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SearchedAt.Equal(out[b].SearchedAt) {
			return out[a].PatientID.String() < out[b].PatientID.String()
		}
		return out[a].SearchedAt.After(out[b].SearchedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
