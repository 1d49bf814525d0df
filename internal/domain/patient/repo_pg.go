package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fichamed/fichamed/internal/platform/db"
)

type repoPG struct{ conn db.Querier }

func NewRepoPG(conn db.Querier) Repository {
	return &repoPG{conn: conn}
}

const patientCols = `id, rut, qr_code, name, photo_url, birth_date, diagnosis, stage,
	allergies, treatment_summary, current_medications, emergency_contacts, operations,
	created_at, updated_at`

// emergency_contacts and operations are jsonb; pgx encodes and decodes the
// slices directly.
func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.RUT, &p.QRCode, &p.Name, &p.PhotoURL, &p.BirthDate,
		&p.Diagnosis, &p.Stage, &p.Allergies, &p.TreatmentSummary,
		&p.CurrentMedications, &p.EmergencyContacts, &p.Operations,
		&p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateRUT
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO patient (id, rut, qr_code, name, photo_url, birth_date, diagnosis, stage,
			allergies, treatment_summary, current_medications, emergency_contacts, operations,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.RUT, p.QRCode, p.Name, p.PhotoURL, p.BirthDate, p.Diagnosis, p.Stage,
		p.Allergies, p.TreatmentSummary, p.CurrentMedications, p.EmergencyContacts, p.Operations,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByRUT(ctx context.Context, rut string) (*Patient, error) {
	return scanPatient(r.conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE rut = $1`, rut))
}

func (r *repoPG) GetByQRCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE qr_code = $1`, code))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE patient SET rut=$2, qr_code=$3, name=$4, photo_url=$5, birth_date=$6,
			diagnosis=$7, stage=$8, allergies=$9, treatment_summary=$10,
			current_medications=$11, emergency_contacts=$12, operations=$13, updated_at=$14
		WHERE id = $1`,
		p.ID, p.RUT, p.QRCode, p.Name, p.PhotoURL, p.BirthDate, p.Diagnosis, p.Stage,
		p.Allergies, p.TreatmentSummary, p.CurrentMedications, p.EmergencyContacts, p.Operations,
		p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update patient: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
