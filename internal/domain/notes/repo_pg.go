package notes

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

const noteCols = `id, patient_id, author_id, body, created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.PatientID, &n.AuthorID, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO note (`+noteCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		n.ID, n.PatientID, n.AuthorID, n.Body, n.CreatedAt, n.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrPatientNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn.QueryRow(ctx, `SELECT `+noteCols+` FROM note WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	tag, err := r.conn.Exec(ctx, `UPDATE note SET body = $2, updated_at = $3 WHERE id = $1`,
		n.ID, n.Body, n.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM note WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Note, int, error) {
	where := `WHERE patient_id = $1 AND ($2::uuid IS NULL OR author_id = $2)`

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM note `+where, f.PatientID, f.AuthorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := r.conn.Query(ctx, `SELECT `+noteCols+` FROM note `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, f.PatientID, f.AuthorID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}
