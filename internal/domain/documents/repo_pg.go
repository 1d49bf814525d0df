package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fichamed/fichamed/internal/platform/db"
)

type repoPG struct{ conn db.Querier }

func NewRepoPG(conn db.Querier) Repository {
	return &repoPG{conn: conn}
}

const docCols = `id, patient_id, uploader_id, title, content_type, size_bytes, object_key, sha256, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.PatientID, &d.UploaderID, &d.Title, &d.ContentType,
		&d.SizeBytes, &d.ObjectKey, &d.SHA256, &d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO document (`+docCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.PatientID, d.UploaderID, d.Title, d.ContentType,
		d.SizeBytes, d.ObjectKey, d.SHA256, d.CreatedAt, d.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrPatientNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.conn.QueryRow(ctx, `SELECT `+docCols+` FROM document WHERE id = $1`, id))
}

func (r *repoPG) UpdateTitle(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `UPDATE document SET title = $2, updated_at = $3 WHERE id = $1`, id, title, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM document WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Document, int, error) {
	where := `WHERE patient_id = $1 AND ($2::uuid IS NULL OR uploader_id = $2)`

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM document `+where, f.PatientID, f.UploaderID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	rows, err := r.conn.Query(ctx, `SELECT `+docCols+` FROM document `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, f.PatientID, f.UploaderID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}
