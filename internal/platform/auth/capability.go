package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of user roles known to the system.
type Role uint8

const (
	RoleDoctor Role = iota
	RoleNurse
	RoleGuardian
	RolePatient

	roleCount
)

var roleNames = [roleCount]string{
	RoleDoctor:   "doctor",
	RoleNurse:    "nurse",
	RoleGuardian: "guardian",
	RolePatient:  "patient",
}

// Roles lists every role in declaration order.
func Roles() []Role {
	return []Role{RoleDoctor, RoleNurse, RoleGuardian, RolePatient}
}

func (r Role) String() string {
	if r >= roleCount {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r < roleCount
}

// ParseRole maps a role claim ("doctor", "Nurse", ...) to a Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Field identifies a patient-record field that may be written.
type Field uint8

const (
	FieldName Field = iota
	FieldPhoto
	FieldRUT
	FieldBirthDate
	FieldQRCode
	FieldDiagnosis
	FieldStage
	FieldAllergies
	FieldTreatmentSummary
	FieldCurrentMedications
	FieldEmergencyContacts
	FieldOperations
	FieldCareTeam

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldName:               "name",
	FieldPhoto:              "photo",
	FieldRUT:                "rut",
	FieldBirthDate:          "birth_date",
	FieldQRCode:             "qr_code",
	FieldDiagnosis:          "diagnosis",
	FieldStage:              "stage",
	FieldAllergies:          "allergies",
	FieldTreatmentSummary:   "treatment_summary",
	FieldCurrentMedications: "current_medications",
	FieldEmergencyContacts:  "emergency_contacts",
	FieldOperations:         "operations",
	FieldCareTeam:           "care_team",
}

func (f Field) String() string {
	if f >= fieldCount {
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
	return fieldNames[f]
}

// ParseField maps a wire field name to a Field.
func ParseField(s string) (Field, error) {
	for i, name := range fieldNames {
		if name == s {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown patient field %q", s)
}

// FieldSet is a bitset over Field.
type FieldSet uint32

// Fields builds a FieldSet from the given fields.
func Fields(fs ...Field) FieldSet {
	var s FieldSet
	for _, f := range fs {
		s |= 1 << f
	}
	return s
}

// AllFields is the set of every patient-record field.
const AllFields FieldSet = 1<<fieldCount - 1

func (s FieldSet) Has(f Field) bool {
	return f < fieldCount && s&(1<<f) != 0
}

// SubsetOf reports whether every field in s is also in other.
func (s FieldSet) SubsetOf(other FieldSet) bool {
	return s&^other == 0
}

// List returns the fields in s in declaration order.
func (s FieldSet) List() []Field {
	var out []Field
	for f := Field(0); f < fieldCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Scope says whether a CRUD permission covers every resource or only the
// caller's own.
type Scope uint8

const (
	ScopeOwn Scope = iota
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "own"
}

// Policy is the CRUD tuple applied to one resource kind.
type Policy struct {
	Create bool
	Read   bool
	Update bool
	Delete bool
	Scope  Scope
}

// Allows reports the flag for the given action.
func (p Policy) Allows(a Action) bool {
	switch a {
	case ActionCreate:
		return p.Create
	case ActionRead:
		return p.Read
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return false
}

// CapabilitySet is the complete authorization policy attached to one role.
type CapabilitySet struct {
	EditableFields FieldSet
	Notes          Policy
	Documents      Policy

	// SearchPatients allows RUT-based patient lookups.
	SearchPatients bool
	// TrackSearchHistory records successful lookups in the caller's history.
	TrackSearchHistory bool
}

var clinicalFields = Fields(
	FieldDiagnosis,
	FieldStage,
	FieldAllergies,
	FieldTreatmentSummary,
	FieldCurrentMedications,
	FieldEmergencyContacts,
	FieldOperations,
	FieldCareTeam,
)

var capabilities = [roleCount]CapabilitySet{
	RoleDoctor: {
		EditableFields:     clinicalFields,
		Notes:              Policy{Create: true, Read: true, Update: true, Delete: true, Scope: ScopeAll},
		Documents:          Policy{Create: true, Read: true, Update: true, Delete: true, Scope: ScopeAll},
		SearchPatients:     true,
		TrackSearchHistory: true,
	},
	RoleNurse: {
		EditableFields: Fields(
			FieldAllergies,
			FieldTreatmentSummary,
			FieldCurrentMedications,
			FieldEmergencyContacts,
			FieldCareTeam,
		),
		Notes:              Policy{Create: true, Read: true, Update: true, Delete: false, Scope: ScopeAll},
		Documents:          Policy{Create: true, Read: true, Update: false, Delete: false, Scope: ScopeAll},
		SearchPatients:     true,
		TrackSearchHistory: true,
	},
	RoleGuardian: {
		EditableFields: Fields(
			FieldAllergies,
			FieldCurrentMedications,
			FieldEmergencyContacts,
		),
		Notes:     Policy{Create: true, Read: true, Update: true, Delete: true, Scope: ScopeOwn},
		Documents: Policy{Create: true, Read: true, Update: false, Delete: true, Scope: ScopeOwn},
	},
	RolePatient: {
		EditableFields: Fields(
			FieldName,
			FieldPhoto,
			FieldAllergies,
			FieldCurrentMedications,
			FieldEmergencyContacts,
		),
		Notes:     Policy{Create: true, Read: true, Update: true, Delete: true, Scope: ScopeOwn},
		Documents: Policy{Create: true, Read: true, Update: true, Delete: true, Scope: ScopeOwn},
	},
}

// CapabilitiesFor returns the capability set of role. Passing a role outside
// the declared set is a programming error and panics.
func CapabilitiesFor(role Role) CapabilitySet {
	if !role.Valid() {
		panic(fmt.Sprintf("auth: no capability set for %s", role))
	}
	return capabilities[role]
}
