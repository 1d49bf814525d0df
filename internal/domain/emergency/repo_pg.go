package emergency

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/platform/db"
)

type AccessLogPG struct{ conn db.Querier }

// NewAccessLogPG stores access records in emergency_access_log.
func NewAccessLogPG(conn db.Querier) *AccessLogPG {
	return &AccessLogPG{conn: conn}
}

func (r *AccessLogPG) Append(ctx context.Context, rec AccessRecord) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO emergency_access_log (id, patient_id, accessor_rut, accessed_at)
		VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.PatientID, rec.AccessorRUT, rec.AccessedAt)
	if err != nil {
		return fmt.Errorf("insert emergency access: %w", err)
	}
	return nil
}

func (r *AccessLogPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]AccessRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, patient_id, accessor_rut, accessed_at FROM emergency_access_log
		WHERE patient_id = $1 ORDER BY accessed_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessRecord
	for rows.Next() {
		var rec AccessRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.AccessorRUT, &rec.AccessedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
