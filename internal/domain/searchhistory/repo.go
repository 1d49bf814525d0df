package searchhistory

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append log behind the tracker. Recent returns the
// newest entry for each of the user's n most recently searched patients,
// newest first, however many raw entries the log holds.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, userID uuid.UUID, n int) ([]Entry, error)
}
