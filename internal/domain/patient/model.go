package patient

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fichamed/fichamed/internal/domain/careteam"
	"github.com/fichamed/fichamed/internal/platform/auth"
)

type EmergencyContact struct {
	Name         string `json:"name" validate:"required,max=255"`
	Relationship string `json:"relationship,omitempty" validate:"max=64"`
	Phone        string `json:"phone" validate:"required"`
}

type Operation struct {
	Name        string `json:"name" validate:"required"`
	PerformedOn string `json:"performed_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes,omitempty"`
}

// Patient maps to the patient table. RUT is stored normalized (no dots or
// dash, uppercase check char).
type Patient struct {
	ID                 uuid.UUID          `json:"id"`
	RUT                string             `json:"rut"`
	QRCode             *string            `json:"qr_code,omitempty"`
	Name               string             `json:"name"`
	PhotoURL           *string            `json:"photo_url,omitempty"`
	BirthDate          *time.Time         `json:"birth_date,omitempty"`
	Diagnosis          *string            `json:"diagnosis,omitempty"`
	Stage              *string            `json:"stage,omitempty"`
	Allergies          []string           `json:"allergies"`
	TreatmentSummary   *string            `json:"treatment_summary,omitempty"`
	CurrentMedications []string           `json:"current_medications"`
	EmergencyContacts  []EmergencyContact `json:"emergency_contacts"`
	Operations         []Operation        `json:"operations"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Record is a patient with its active care team, as returned to clients
// and to emergency responders.
type Record struct {
	Patient
	RUTDisplay string                 `json:"rut_display"`
	CareTeam   []*careteam.Membership `json:"care_team"`
}

type CreateRequest struct {
	RUT       string `json:"rut" validate:"required,rut"`
	Name      string `json:"name" validate:"required,max=255"`
	BirthDate string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Diagnosis string `json:"diagnosis,omitempty"`
	Stage     string `json:"stage,omitempty" validate:"max=64"`
}

// Patch is a partial update. A nil member is left unchanged. Keys match
// the wire names of auth.Field.
type Patch struct {
	Name               *string             `json:"name"`
	Photo              *string             `json:"photo"`
	RUT                *string             `json:"rut"`
	BirthDate          *string             `json:"birth_date"`
	QRCode             *string             `json:"qr_code"`
	Diagnosis          *string             `json:"diagnosis"`
	Stage              *string             `json:"stage"`
	Allergies          *[]string           `json:"allergies"`
	TreatmentSummary   *string             `json:"treatment_summary"`
	CurrentMedications *[]string           `json:"current_medications"`
	EmergencyContacts  *[]EmergencyContact `json:"emergency_contacts" validate:"omitempty,dive"`
	Operations         *[]Operation        `json:"operations" validate:"omitempty,dive"`
	CareTeam           json.RawMessage     `json:"care_team"`
}

// Fields lists the fields the patch writes, in auth.Field order.
func (p *Patch) Fields() []auth.Field {
	set := map[auth.Field]bool{
		auth.FieldName:               p.Name != nil,
		auth.FieldPhoto:              p.Photo != nil,
		auth.FieldRUT:                p.RUT != nil,
		auth.FieldBirthDate:          p.BirthDate != nil,
		auth.FieldQRCode:             p.QRCode != nil,
		auth.FieldDiagnosis:          p.Diagnosis != nil,
		auth.FieldStage:              p.Stage != nil,
		auth.FieldAllergies:          p.Allergies != nil,
		auth.FieldTreatmentSummary:   p.TreatmentSummary != nil,
		auth.FieldCurrentMedications: p.CurrentMedications != nil,
		auth.FieldEmergencyContacts:  p.EmergencyContacts != nil,
		auth.FieldOperations:         p.Operations != nil,
		auth.FieldCareTeam:           len(p.CareTeam) > 0,
	}
	var out []auth.Field
	for _, f := range auth.AllFields.List() {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

// apply writes the patch onto pt. Fields must already be authorized.
func (p *Patch) apply(pt *Patient) error {
	if p.Name != nil {
		pt.Name = *p.Name
	}
	if p.Photo != nil {
		pt.PhotoURL = emptyToNil(*p.Photo)
	}
	if p.RUT != nil {
		pt.RUT = *p.RUT
	}
	if p.BirthDate != nil {
		d, err := parseDate(*p.BirthDate)
		if err != nil {
			return err
		}
		pt.BirthDate = d
	}
	if p.QRCode != nil {
		pt.QRCode = emptyToNil(*p.QRCode)
	}
	if p.Diagnosis != nil {
		pt.Diagnosis = emptyToNil(*p.Diagnosis)
	}
	if p.Stage != nil {
		pt.Stage = emptyToNil(*p.Stage)
	}
	if p.Allergies != nil {
		pt.Allergies = *p.Allergies
	}
	if p.TreatmentSummary != nil {
		pt.TreatmentSummary = emptyToNil(*p.TreatmentSummary)
	}
	if p.CurrentMedications != nil {
		pt.CurrentMedications = *p.CurrentMedications
	}
	if p.EmergencyContacts != nil {
		pt.EmergencyContacts = *p.EmergencyContacts
	}
	if p.Operations != nil {
		pt.Operations = *p.Operations
	}
	return nil
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}
