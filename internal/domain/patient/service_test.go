package patient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/domain/careteam"
	"github.com/fichamed/fichamed/internal/platform/auth"
)

// -- Mocks --

type mockRepo struct {
	store   map[uuid.UUID]*Patient
	updates int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.store {
		if existing.RUT == p.RUT {
			return ErrDuplicateRUT
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByRUT(_ context.Context, r string) (*Patient, error) {
	for _, p := range m.store {
		if p.RUT == r {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByQRCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.store {
		if p.QRCode != nil && *p.QRCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	m.updates++
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

type stubCareTeam struct {
	members map[uuid.UUID][]*careteam.Membership
}

func (s *stubCareTeam) ListActive(_ context.Context, patientID uuid.UUID) ([]*careteam.Membership, error) {
	return s.members[patientID], nil
}

type searchCall struct {
	userID, patientID uuid.UUID
	rut               string
}

type stubRecorder struct {
	calls []searchCall
	err   error
}

func (s *stubRecorder) Record(_ context.Context, userID, patientID uuid.UUID, r string) error {
	s.calls = append(s.calls, searchCall{userID, patientID, r})
	return s.err
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	team     *stubCareTeam
	recorder *stubRecorder
	patient  *Patient
}

func newFixture() *fixture {
	repo := newMockRepo()
	team := &stubCareTeam{members: make(map[uuid.UUID][]*careteam.Membership)}
	recorder := &stubRecorder{}
	svc := NewService(repo, team, recorder, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	diag := "Leucemia linfoblástica aguda"
	qr := "QR-ABC123"
	p := &Patient{
		ID:                 uuid.New(),
		RUT:                "123456785",
		QRCode:             &qr,
		Name:               "Martina Rojas",
		Diagnosis:          &diag,
		Allergies:          []string{"penicilina"},
		CurrentMedications: []string{},
		EmergencyContacts:  []EmergencyContact{},
		Operations:         []Operation{},
	}
	repo.store[p.ID] = p
	team.members[p.ID] = []*careteam.Membership{{ID: uuid.New(), PatientID: p.ID, RoleLabel: "Oncóloga", Status: careteam.StatusActive}}
	return &fixture{svc: svc, repo: repo, team: team, recorder: recorder, patient: p}
}

var (
	doctor      = auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	nurse       = auth.Caller{ID: uuid.New(), Role: auth.RoleNurse}
	guardian    = auth.Caller{ID: uuid.New(), Role: auth.RoleGuardian}
	patientUser = auth.Caller{ID: uuid.New(), Role: auth.RolePatient}
)

func strp(s string) *string { return &s }

func TestFindByRUT_RecordsHistoryForClinicians(t *testing.T) {
	f := newFixture()

	rec, err := f.svc.FindByRUT(context.Background(), doctor, "12.345.678-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != f.patient.ID {
		t.Errorf("expected patient %s, got %s", f.patient.ID, rec.ID)
	}
	if rec.RUTDisplay != "12.345.678-5" {
		t.Errorf("expected formatted rut, got %q", rec.RUTDisplay)
	}
	if len(rec.CareTeam) != 1 {
		t.Errorf("expected care team in record, got %d members", len(rec.CareTeam))
	}
	if len(f.recorder.calls) != 1 {
		t.Fatalf("expected one history record, got %d", len(f.recorder.calls))
	}
	call := f.recorder.calls[0]
	if call.userID != doctor.ID || call.patientID != f.patient.ID || call.rut != "123456785" {
		t.Errorf("unexpected history call: %+v", call)
	}
}

func TestFindByRUT_InvalidRUTNeverLooksUp(t *testing.T) {
	f := newFixture()
	_, err := f.svc.FindByRUT(context.Background(), nurse, "12.345.678-9")
	if !errors.Is(err, ErrInvalidRUT) {
		t.Fatalf("expected ErrInvalidRUT, got %v", err)
	}
	if len(f.recorder.calls) != 0 {
		t.Error("no history should be recorded for an invalid rut")
	}
}

func TestFindByRUT_GuardianForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.FindByRUT(context.Background(), guardian, "12.345.678-5")
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestFindByRUT_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.FindByRUT(context.Background(), doctor, "11.111.111-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.recorder.calls) != 0 {
		t.Error("a miss must not be recorded")
	}
}

func TestFindByRUT_HistoryFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.recorder.err = errors.New("redis down")

	if _, err := f.svc.FindByRUT(context.Background(), doctor, "123456785"); err != nil {
		t.Fatalf("history failure must not fail the lookup: %v", err)
	}
}

func TestApplyUpdate_RejectsWholePatch(t *testing.T) {
	f := newFixture()
	patch := &Patch{
		Allergies: &[]string{"látex"},
		Diagnosis: strp("otra"),
	}

	_, err := f.svc.ApplyUpdate(context.Background(), guardian, f.patient.ID, patch)
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.repo.updates != 0 {
		t.Error("no part of a rejected patch may be written")
	}
	if got := f.repo.store[f.patient.ID].Allergies; len(got) != 1 || got[0] != "penicilina" {
		t.Errorf("allergies changed on rejected patch: %v", got)
	}
}

func TestApplyUpdate_GuardianEditsAllergies(t *testing.T) {
	f := newFixture()
	rec, err := f.svc.ApplyUpdate(context.Background(), guardian, f.patient.ID, &Patch{Allergies: &[]string{"látex"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Allergies) != 1 || rec.Allergies[0] != "látex" {
		t.Errorf("unexpected allergies %v", rec.Allergies)
	}
	if *rec.Diagnosis != "Leucemia linfoblástica aguda" {
		t.Error("untouched fields must be preserved")
	}
}

func TestApplyUpdate_PatientEditsNameNurseCannot(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ApplyUpdate(context.Background(), patientUser, f.patient.ID, &Patch{Name: strp("Martina R.")}); err != nil {
		t.Fatalf("patient should edit own name: %v", err)
	}
	if _, err := f.svc.ApplyUpdate(context.Background(), nurse, f.patient.ID, &Patch{Name: strp("X")}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for nurse, got %v", err)
	}
}

func TestApplyUpdate_NobodyEditsRUT(t *testing.T) {
	f := newFixture()
	for _, c := range []auth.Caller{doctor, nurse, guardian, patientUser} {
		_, err := f.svc.ApplyUpdate(context.Background(), c, f.patient.ID, &Patch{RUT: strp("11.111.111-1")})
		if !errors.Is(err, auth.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", c.Role, err)
		}
	}
}

func TestApplyUpdate_CareTeamRejected(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ApplyUpdate(context.Background(), doctor, f.patient.ID, &Patch{CareTeam: json.RawMessage(`[]`)})
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestApplyUpdate_EmptyPatch(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ApplyUpdate(context.Background(), doctor, f.patient.ID, &Patch{}); !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestApplyUpdate_EmergencyContactPhones(t *testing.T) {
	f := newFixture()
	example := phonenumbers.GetExampleNumber(DefaultPhoneRegion)
	valid := phonenumbers.Format(example, phonenumbers.NATIONAL)

	rec, err := f.svc.ApplyUpdate(context.Background(), guardian, f.patient.ID, &Patch{
		EmergencyContacts: &[]EmergencyContact{{Name: "Carolina", Relationship: "madre", Phone: valid}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := phonenumbers.Format(example, phonenumbers.E164)
	if rec.EmergencyContacts[0].Phone != want {
		t.Errorf("expected phone normalized to %s, got %s", want, rec.EmergencyContacts[0].Phone)
	}

	_, err = f.svc.ApplyUpdate(context.Background(), guardian, f.patient.ID, &Patch{
		EmergencyContacts: &[]EmergencyContact{{Name: "Carolina", Phone: "12345"}},
	})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestApplyUpdate_NotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ApplyUpdate(context.Background(), doctor, uuid.New(), &Patch{Stage: strp("II")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	rec, err := f.svc.Create(context.Background(), nurse, CreateRequest{RUT: "7.654.321-6", Name: "Tomás", BirthDate: "2015-03-02"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.RUT != "76543216" || rec.RUTDisplay != "7.654.321-6" {
		t.Errorf("unexpected rut %q / %q", rec.RUT, rec.RUTDisplay)
	}
	if rec.QRCode == nil || len(*rec.QRCode) != len("QR-")+32 {
		t.Errorf("expected generated qr code, got %v", rec.QRCode)
	}
	if rec.Allergies == nil || rec.CareTeam == nil {
		t.Error("expected empty, non-nil collections")
	}

	if _, err := f.svc.Create(context.Background(), guardian, CreateRequest{RUT: "11.111.111-1", Name: "X"}); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden for guardian, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), doctor, CreateRequest{RUT: "11.111.111-2", Name: "X"}); !errors.Is(err, ErrInvalidRUT) {
		t.Errorf("expected ErrInvalidRUT, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), doctor, CreateRequest{RUT: "7654321-6", Name: "Dup"}); !errors.Is(err, ErrDuplicateRUT) {
		t.Errorf("expected ErrDuplicateRUT, got %v", err)
	}
}

func TestFindByQRCode(t *testing.T) {
	f := newFixture()
	rec, err := f.svc.FindByQRCode(context.Background(), "QR-ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != f.patient.ID {
		t.Errorf("wrong patient")
	}
	if _, err := f.svc.FindByQRCode(context.Background(), "QR-NOPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPatch_FieldsInOrder(t *testing.T) {
	p := &Patch{
		Operations: &[]Operation{},
		Name:       strp("x"),
		Allergies:  &[]string{},
		CareTeam:   json.RawMessage(`null`),
	}
	got := p.Fields()
	want := []auth.Field{auth.FieldName, auth.FieldAllergies, auth.FieldOperations, auth.FieldCareTeam}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
