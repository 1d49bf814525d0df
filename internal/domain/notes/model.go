// Package notes stores free-text clinical notes attached to a patient.
package notes

import (
	"time"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

type Note struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Note) Kind() auth.ResourceKind { return auth.ResourceNote }
func (n *Note) OwnerID() uuid.UUID      { return n.AuthorID }

// MaxBodyLength bounds a note body in bytes.
const MaxBodyLength = 20000

type WriteRequest struct {
	Body string `json:"body" validate:"required,max=20000"`
}
