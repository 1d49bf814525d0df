// Package documents keeps uploaded files for a patient. Content is held in
// a blobstore.Store and metadata in Postgres.
package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

type Document struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	UploaderID  uuid.UUID `json:"uploader_id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ObjectKey   string    `json:"-"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *Document) Kind() auth.ResourceKind { return auth.ResourceDocument }
func (d *Document) OwnerID() uuid.UUID      { return d.UploaderID }

func objectKey(patientID, docID uuid.UUID) string {
	return "patients/" + patientID.String() + "/" + docID.String()
}

type RenameRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}
