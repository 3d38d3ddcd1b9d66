package patient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/risk"
	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/internal/platform/notification"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	byMobile map[string]*Patient

	recoveryStatus string
	recoveryScore  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		byMobile: make(map[string]*Patient),
	}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	m.byMobile[p.Mobile] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) GetByMobile(_ context.Context, mobile string) (*Patient, error) {
	p, ok := m.byMobile[mobile]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error { m.patients[p.ID] = p; return nil }
func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) ListByHospital(_ context.Context, _ uuid.UUID, _, _ int) ([]*Patient, int, error) {
	return nil, 0, nil
}

func (m *mockRepo) Search(_ context.Context, _ map[string]string, _, _ int) ([]*Patient, int, error) {
	return nil, 0, nil
}

func (m *mockRepo) UpdateRecovery(_ context.Context, id uuid.UUID, status string, score int) error {
	m.recoveryStatus = status
	m.recoveryScore = score
	if p, ok := m.patients[id]; ok {
		p.RecoveryStatus = status
		p.RecoveryScore = score
	}
	return nil
}

func (m *mockRepo) UpdateAppointment(_ context.Context, id uuid.UUID, date *time.Time, timeOfDay, dept *string) error {
	if p, ok := m.patients[id]; ok {
		p.NextAppointmentDate = date
		p.NextAppointmentTime = timeOfDay
		p.NextAppointmentDept = dept
	}
	return nil
}

func (m *mockRepo) SetOTP(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	if p, ok := m.patients[id]; ok {
		p.OTPCode = &code
		p.OTPExpiresAt = &expiresAt
	}
	return nil
}

func (m *mockRepo) ClearOTP(_ context.Context, id uuid.UUID) error {
	if p, ok := m.patients[id]; ok {
		p.OTPCode = nil
		p.OTPExpiresAt = nil
	}
	return nil
}

func newTestService(repo *mockRepo, sms *notification.MockSMSSender) *Service {
	mgr := notification.NewManager(&notification.MockEmailSender{}, sms, notification.NewTemplateEngine())
	return NewService(repo, mgr, "test-secret", 10*time.Minute)
}

func validPatient() *Patient {
	return &Patient{
		HospitalID:      uuid.New(),
		Name:            "Jane Doe",
		Mobile:          "+15550001111",
		SurgeryType:     "Knee Replacement",
		SurgeryCategory: CategoryOrthopedic,
		SurgeryDate:     time.Now().AddDate(0, 0, -7),
	}
}

func TestCreate_DefaultsApplied(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &notification.MockSMSSender{})

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.RecoveryStatus != risk.StatusStable {
		t.Errorf("recovery_status = %q, want Stable", p.RecoveryStatus)
	}
	if p.RecoveryScore != 100 {
		t.Errorf("recovery_score = %d, want 100", p.RecoveryScore)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newMockRepo(), &notification.MockSMSSender{})

	tests := []struct {
		name   string
		mutate func(*Patient)
	}{
		{"missing hospital", func(p *Patient) { p.HospitalID = uuid.Nil }},
		{"missing name", func(p *Patient) { p.Name = "" }},
		{"missing mobile", func(p *Patient) { p.Mobile = "" }},
		{"missing surgery type", func(p *Patient) { p.SurgeryType = "" }},
		{"bad category", func(p *Patient) { p.SurgeryCategory = "dental" }},
		{"missing surgery date", func(p *Patient) { p.SurgeryDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatient()
			tt.mutate(p)
			if err := svc.Create(context.Background(), p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCreate_EmptyCategoryDefaultsToGeneral(t *testing.T) {
	svc := newTestService(newMockRepo(), &notification.MockSMSSender{})
	p := validPatient()
	p.SurgeryCategory = ""
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.SurgeryCategory != CategoryGeneral {
		t.Errorf("surgery_category = %q, want general", p.SurgeryCategory)
	}
}

func TestSetRecovery_Validation(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &notification.MockSMSSender{})

	id := uuid.New()
	if err := svc.SetRecovery(context.Background(), id, "Critical", 50); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := svc.SetRecovery(context.Background(), id, risk.StatusHighRisk, 120); err == nil {
		t.Error("expected error for out-of-range score")
	}
	if err := svc.SetRecovery(context.Background(), id, risk.StatusHighRisk, 20); err != nil {
		t.Errorf("valid override rejected: %v", err)
	}
	if repo.recoveryStatus != risk.StatusHighRisk || repo.recoveryScore != 20 {
		t.Errorf("override not persisted: %q/%d", repo.recoveryStatus, repo.recoveryScore)
	}
}

func TestOTPFlow(t *testing.T) {
	repo := newMockRepo()
	sms := &notification.MockSMSSender{}
	svc := newTestService(repo, sms)

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.RequestOTP(context.Background(), p.Mobile); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if len(sms.Calls()) != 1 {
		t.Fatalf("expected 1 sms, got %d", len(sms.Calls()))
	}
	if p.OTPCode == nil {
		t.Fatal("OTP not stored")
	}

	token, got, err := svc.VerifyOTP(context.Background(), p.Mobile, *p.OTPCode)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("wrong patient returned")
	}

	claims, err := auth.ParseToken("test-secret", token)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.Role != auth.RolePatient {
		t.Errorf("role = %q, want patient", claims.Role)
	}
	if claims.HospitalID != p.HospitalID.String() {
		t.Errorf("hospital_id = %q", claims.HospitalID)
	}

	// Codes are single-use.
	if _, _, err := svc.VerifyOTP(context.Background(), p.Mobile, "000000"); err == nil {
		t.Error("expected error reusing a consumed code")
	}
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &notification.MockSMSSender{})

	p := validPatient()
	_ = svc.Create(context.Background(), p)
	_ = svc.RequestOTP(context.Background(), p.Mobile)

	wrong := "000000"
	if *p.OTPCode == wrong {
		wrong = "000001"
	}
	if _, _, err := svc.VerifyOTP(context.Background(), p.Mobile, wrong); err == nil {
		t.Error("expected error for wrong code")
	}
	if p.OTPCode == nil {
		t.Error("code should survive a failed attempt")
	}
}

func TestVerifyOTP_Expired(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &notification.MockSMSSender{})

	p := validPatient()
	_ = svc.Create(context.Background(), p)

	code := "123456"
	expired := time.Now().Add(-time.Minute)
	p.OTPCode = &code
	p.OTPExpiresAt = &expired

	if _, _, err := svc.VerifyOTP(context.Background(), p.Mobile, code); err == nil {
		t.Error("expected error for expired code")
	}
}

func TestAppointmentWithin(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	p := &Patient{}
	if p.AppointmentWithin(now, 72*time.Hour) {
		t.Error("no appointment should not match")
	}

	in2d := now.Add(48 * time.Hour)
	p.NextAppointmentDate = &in2d
	if !p.AppointmentWithin(now, 72*time.Hour) {
		t.Error("appointment in 2 days should be inside a 3 day window")
	}

	in5d := now.Add(120 * time.Hour)
	p.NextAppointmentDate = &in5d
	if p.AppointmentWithin(now, 72*time.Hour) {
		t.Error("appointment in 5 days should be outside a 3 day window")
	}

	past := now.Add(-48 * time.Hour)
	p.NextAppointmentDate = &past
	if p.AppointmentWithin(now, 72*time.Hour) {
		t.Error("past appointment should not match")
	}
}
