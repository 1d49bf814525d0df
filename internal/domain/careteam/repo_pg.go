package careteam

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

const memberCols = `id, patient_id, user_id, display_name, role_label, status, assigned_at, updated_at`

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.PatientID, &m.UserID, &m.DisplayName, &m.RoleLabel,
		&m.Status, &m.AssignedAt, &m.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &m, err
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyMember
		case "23503":
			return ErrPatientNotFound
		}
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, m *Membership) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO care_team_membership (id, patient_id, user_id, display_name, role_label, status, assigned_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.PatientID, m.UserID, m.DisplayName, m.RoleLabel, m.Status, m.AssignedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert membership: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Membership, error) {
	return scanMembership(r.conn.QueryRow(ctx, `SELECT `+memberCols+` FROM care_team_membership WHERE id = $1`, id))
}

func (r *repoPG) FindActive(ctx context.Context, patientID, userID uuid.UUID) (*Membership, error) {
	return scanMembership(r.conn.QueryRow(ctx, `
		SELECT `+memberCols+` FROM care_team_membership
		WHERE patient_id = $1 AND user_id = $2 AND status = 'active'`, patientID, userID))
}

func (r *repoPG) Update(ctx context.Context, m *Membership) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE care_team_membership SET role_label = $2, status = $3, updated_at = $4
		WHERE id = $1`,
		m.ID, m.RoleLabel, m.Status, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update membership: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Membership, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+memberCols+` FROM care_team_membership
		WHERE patient_id = $1 AND status = 'active'
		ORDER BY assigned_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM care_team_membership WHERE user_id = $1 AND status = 'active'`,
		userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, `
		SELECT `+memberCols+` FROM care_team_membership
		WHERE user_id = $1 AND status = 'active'
		ORDER BY assigned_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func collect(rows pgx.Rows) ([]*Membership, error) {
	var items []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
