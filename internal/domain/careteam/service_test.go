package careteam

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Membership
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Membership)}
}

func (m *mockRepo) Create(_ context.Context, mem *Membership) error {
	cp := *mem
	m.store[mem.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Membership, error) {
	mem, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *mockRepo) FindActive(_ context.Context, patientID, userID uuid.UUID) (*Membership, error) {
	for _, mem := range m.store {
		if mem.PatientID == patientID && mem.UserID == userID && mem.Active() {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, mem *Membership) error {
	if _, ok := m.store[mem.ID]; !ok {
		return ErrNotFound
	}
	cp := *mem
	m.store[mem.ID] = &cp
	return nil
}

func (m *mockRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Membership, error) {
	var out []*Membership
	for _, mem := range m.store {
		if mem.PatientID == patientID && mem.Active() {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (m *mockRepo) ListActiveByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	var out []*Membership
	for _, mem := range m.store {
		if mem.UserID == userID && mem.Active() {
			out = append(out, mem)
		}
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc, repo
}

var (
	doctor   = auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	nurse    = auth.Caller{ID: uuid.New(), Role: auth.RoleNurse}
	guardian = auth.Caller{ID: uuid.New(), Role: auth.RoleGuardian}
)

func addReq(userID uuid.UUID) AddMemberRequest {
	return AddMemberRequest{UserID: userID, DisplayName: "Dra. Soto", RoleLabel: "Oncóloga tratante"}
}

func TestAddMember_Success(t *testing.T) {
	svc, _ := newTestService()
	patientID, userID := uuid.New(), uuid.New()

	m, err := svc.AddMember(context.Background(), doctor, patientID, addReq(userID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != StatusActive || m.PatientID != patientID || m.UserID != userID {
		t.Errorf("unexpected membership: %+v", m)
	}
	if m.AssignedAt.IsZero() {
		t.Error("expected AssignedAt to be set")
	}
}

func TestAddMember_NurseAllowed(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.AddMember(context.Background(), nurse, uuid.New(), addReq(uuid.New())); err != nil {
		t.Fatalf("nurse should be able to edit the care team: %v", err)
	}
}

func TestAddMember_GuardianForbidden(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.AddMember(context.Background(), guardian, uuid.New(), addReq(uuid.New()))
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("nothing should be stored on a denied request")
	}
}

func TestAddMember_DuplicateActive(t *testing.T) {
	svc, _ := newTestService()
	patientID, userID := uuid.New(), uuid.New()
	if _, err := svc.AddMember(context.Background(), doctor, patientID, addReq(userID)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddMember(context.Background(), doctor, patientID, addReq(userID))
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestAddMember_MissingLabel(t *testing.T) {
	svc, _ := newTestService()
	req := addReq(uuid.New())
	req.RoleLabel = "  "
	if _, err := svc.AddMember(context.Background(), doctor, uuid.New(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for blank role label, got %v", err)
	}
}

func TestDeactivate_SoftDeletes(t *testing.T) {
	svc, repo := newTestService()
	patientID := uuid.New()
	m, _ := svc.AddMember(context.Background(), doctor, patientID, addReq(uuid.New()))

	out, err := svc.Deactivate(context.Background(), doctor, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusInactive {
		t.Errorf("expected inactive, got %s", out.Status)
	}
	if _, ok := repo.store[m.ID]; !ok {
		t.Error("membership must remain stored after deactivation")
	}
	active, _ := svc.ListActive(context.Background(), patientID)
	if len(active) != 0 {
		t.Errorf("expected no active members, got %d", len(active))
	}

	if _, err := svc.Deactivate(context.Background(), doctor, m.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on second deactivate, got %v", err)
	}
}

func TestReactivate(t *testing.T) {
	svc, _ := newTestService()
	patientID, userID := uuid.New(), uuid.New()
	m, _ := svc.AddMember(context.Background(), doctor, patientID, addReq(userID))
	_, _ = svc.Deactivate(context.Background(), doctor, m.ID)

	out, err := svc.Reactivate(context.Background(), nurse, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Active() {
		t.Errorf("expected active, got %s", out.Status)
	}
}

func TestReactivate_ConflictsWithNewerMembership(t *testing.T) {
	svc, _ := newTestService()
	patientID, userID := uuid.New(), uuid.New()
	old, _ := svc.AddMember(context.Background(), doctor, patientID, addReq(userID))
	_, _ = svc.Deactivate(context.Background(), doctor, old.ID)
	if _, err := svc.AddMember(context.Background(), doctor, patientID, addReq(userID)); err != nil {
		t.Fatalf("re-add after deactivation: %v", err)
	}

	if _, err := svc.Reactivate(context.Background(), doctor, old.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestRelabel(t *testing.T) {
	svc, _ := newTestService()
	m, _ := svc.AddMember(context.Background(), doctor, uuid.New(), addReq(uuid.New()))

	out, err := svc.Relabel(context.Background(), doctor, m.ID, "Enfermera jefe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RoleLabel != "Enfermera jefe" {
		t.Errorf("expected new label, got %q", out.RoleLabel)
	}
	if !out.UpdatedAt.After(m.UpdatedAt) {
		t.Error("expected UpdatedAt to advance")
	}

	if _, err := svc.Relabel(context.Background(), guardian, m.ID, "x"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden for guardian, got %v", err)
	}
}

func TestRelabel_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Relabel(context.Background(), doctor, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPatientsFor(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		_, _ = svc.AddMember(context.Background(), doctor, uuid.New(), addReq(userID))
	}
	_, _ = svc.AddMember(context.Background(), doctor, uuid.New(), addReq(uuid.New()))

	items, total, err := svc.PatientsFor(context.Background(), userID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("expected 3 patients, got %d/%d", len(items), total)
	}
}
