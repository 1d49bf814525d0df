package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrForbidden is returned when an access decision denies the request.
// Callers must reject the whole operation, never apply it partially.
var ErrForbidden = errors.New("forbidden")

// Action is a CRUD verb evaluated against a resource policy.
type Action uint8

const (
	ActionCreate Action = iota
	ActionRead
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ResourceKind selects which policy of a CapabilitySet applies.
type ResourceKind uint8

const (
	ResourceNote ResourceKind = iota
	ResourceDocument
)

func (k ResourceKind) String() string {
	if k == ResourceDocument {
		return "document"
	}
	return "note"
}

// Authored is a resource that carries the id of the user who wrote or
// uploaded it. The owner id anchors Own-scope checks.
type Authored interface {
	Kind() ResourceKind
	OwnerID() uuid.UUID
}

// PolicyFor returns the policy of kind k within the set.
func (c CapabilitySet) PolicyFor(k ResourceKind) Policy {
	if k == ResourceDocument {
		return c.Documents
	}
	return c.Notes
}

// CanEditField reports whether role may write field directly.
func CanEditField(role Role, field Field) bool {
	return CapabilitiesFor(role).EditableFields.Has(field)
}

// CanActOnResource reports whether a caller with role and callerID may
// perform action on res. Care-team membership plays no part here. A nil
// resource is never actionable.
func CanActOnResource(role Role, callerID uuid.UUID, action Action, res Authored) bool {
	if res == nil {
		return false
	}
	p := CapabilitiesFor(role).PolicyFor(res.Kind())
	if !p.Allows(action) {
		return false
	}
	if p.Scope == ScopeAll {
		return true
	}
	return callerID != uuid.Nil && callerID == res.OwnerID()
}

// AuthorizeFields returns ErrForbidden naming the first field in fields the
// role may not write.
func AuthorizeFields(role Role, fields ...Field) error {
	for _, f := range fields {
		if !CanEditField(role, f) {
			return fmt.Errorf("%w: %s may not edit %s", ErrForbidden, role, f)
		}
	}
	return nil
}

// Authorize is CanActOnResource for callers that want an error.
func Authorize(c Caller, action Action, res Authored) error {
	if res == nil {
		return fmt.Errorf("%w: no resource to %s", ErrForbidden, action)
	}
	if !CanActOnResource(c.Role, c.ID, action, res) {
		return fmt.Errorf("%w: %s may not %s this %s", ErrForbidden, c.Role, action, res.Kind())
	}
	return nil
}
