package searchhistory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/platform/db"
)

type repoPG struct{ conn db.Querier }

// NewRepoPG keeps the full log in the search_history table.
func NewRepoPG(conn db.Querier) Repository {
	return &repoPG{conn: conn}
}

func (r *repoPG) Append(ctx context.Context, e Entry) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO search_history (id, user_id, patient_id, patient_rut, searched_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.PatientID, e.PatientRUT, e.SearchedAt)
	if err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	return nil
}

func (r *repoPG) Recent(ctx context.Context, userID uuid.UUID, n int) ([]Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, patient_id, patient_rut, searched_at FROM (
			SELECT DISTINCT ON (patient_id) id, user_id, patient_id, patient_rut, searched_at
			FROM search_history
			WHERE user_id = $1
			ORDER BY patient_id, searched_at DESC
		) latest
		ORDER BY searched_at DESC, patient_id
		LIMIT $2`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.PatientID, &e.PatientRUT, &e.SearchedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
