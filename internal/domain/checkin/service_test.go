package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/risk"
)

type mockRepo struct {
	checkins []*CheckIn
	failOn   string
}

func (m *mockRepo) Create(_ context.Context, ci *CheckIn) error {
	if m.failOn == "create" {
		return errors.New("db down")
	}
	ci.ID = uuid.New()
	ci.CreatedAt = time.Now()
	m.checkins = append(m.checkins, ci)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*CheckIn, error) {
	for _, ci := range m.checkins {
		if ci.ID == id {
			return ci, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) GetByPatientAndDate(_ context.Context, patientID uuid.UUID, date time.Time) (*CheckIn, error) {
	for _, ci := range m.checkins {
		if ci.PatientID == patientID && ci.CheckInDate.Equal(date) {
			return ci, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*CheckIn, int, error) {
	var out []*CheckIn
	for _, ci := range m.checkins {
		if ci.PatientID == patientID {
			out = append(out, ci)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListRecent(_ context.Context, patientID uuid.UUID, n int) ([]*CheckIn, error) {
	var out []*CheckIn
	for i := len(m.checkins) - 1; i >= 0 && len(out) < n; i-- {
		if m.checkins[i].PatientID == patientID {
			out = append(out, m.checkins[i])
		}
	}
	return out, nil
}

type recordingEscalator struct {
	dispatched []*CheckIn
}

func (r *recordingEscalator) DispatchCheckIn(_ context.Context, ci *CheckIn) error {
	r.dispatched = append(r.dispatched, ci)
	return nil
}

type fixedClassifier struct {
	res risk.Result
	err error
}

func (f fixedClassifier) Classify(context.Context, risk.Input) (risk.Result, error) {
	return f.res, f.err
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func validRequest() SubmitRequest {
	return SubmitRequest{
		Pain:            intPtr(3),
		Mobility:        risk.MobilityNormal,
		MedicationTaken: boolPtr(true),
	}
}

func TestSubmit_PersistsAndDispatches(t *testing.T) {
	repo := &mockRepo{}
	esc := &recordingEscalator{}
	svc := NewService(repo, risk.NewRuleClassifier(risk.DefaultConfig()))
	svc.SetEscalator(esc)

	patientID := uuid.New()
	ci, err := svc.Submit(context.Background(), patientID, "general", validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(repo.checkins) != 1 {
		t.Fatalf("expected exactly 1 persisted check-in, got %d", len(repo.checkins))
	}
	if len(esc.dispatched) != 1 || esc.dispatched[0].ID != ci.ID {
		t.Error("escalator should receive the persisted check-in")
	}
	if ci.RiskStatus != risk.StatusStable {
		t.Errorf("risk_status = %q, want Stable", ci.RiskStatus)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService(&mockRepo{}, risk.NewRuleClassifier(risk.DefaultConfig()))

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing pain", func(r *SubmitRequest) { r.Pain = nil }},
		{"pain too high", func(r *SubmitRequest) { r.Pain = intPtr(11) }},
		{"pain negative", func(r *SubmitRequest) { r.Pain = intPtr(-1) }},
		{"bad mobility", func(r *SubmitRequest) { r.Mobility = "Walking" }},
		{"empty mobility", func(r *SubmitRequest) { r.Mobility = "" }},
		{"medication unanswered", func(r *SubmitRequest) { r.MedicationTaken = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := svc.Submit(context.Background(), uuid.New(), "general", req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSubmit_DuplicateSameDayRejected(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, risk.NewRuleClassifier(risk.DefaultConfig()))

	patientID := uuid.New()
	if _, err := svc.Submit(context.Background(), patientID, "general", validRequest()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), patientID, "general", validRequest()); err == nil {
		t.Fatal("second same-day submission should be rejected")
	}
	if len(repo.checkins) != 1 {
		t.Errorf("exactly one check-in should exist, got %d", len(repo.checkins))
	}
}

func TestSubmit_ScoreClamped(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		wantScore int
	}{
		{"over range", 150, 100},
		{"under range", -10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			clf := fixedClassifier{res: risk.Result{Score: tt.score, Status: risk.StatusNeedsMonitoring, Assessment: "model output"}}
			svc := NewService(repo, clf)

			ci, err := svc.Submit(context.Background(), uuid.New(), "general", validRequest())
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if ci.RiskScore != tt.wantScore {
				t.Errorf("risk_score = %d, want %d", ci.RiskScore, tt.wantScore)
			}
		})
	}
}

func TestSubmit_ClassifierFailureStillPersists(t *testing.T) {
	repo := &mockRepo{}
	clf := fixedClassifier{err: errors.New("inference timeout")}
	svc := NewService(repo, clf)

	req := validRequest()
	req.Pain = intPtr(9)
	ci, err := svc.Submit(context.Background(), uuid.New(), "general", req)
	if err != nil {
		t.Fatalf("classification failure must not block persistence: %v", err)
	}
	if len(repo.checkins) != 1 {
		t.Fatal("check-in should be persisted despite classifier failure")
	}
	if ci.Assessment != fallbackAssessment {
		t.Errorf("assessment = %q, want fallback placeholder", ci.Assessment)
	}
	// Rules still grade the answers: pain 9 is at least Needs Monitoring.
	if risk.Severity(ci.RiskStatus) < risk.Severity(risk.StatusNeedsMonitoring) {
		t.Errorf("risk_status = %q, want at least Needs Monitoring", ci.RiskStatus)
	}
}

func TestSubmit_InvalidRemoteStatusCorrected(t *testing.T) {
	repo := &mockRepo{}
	clf := fixedClassifier{res: risk.Result{Score: 55, Status: "Catastrophic", Assessment: "x"}}
	svc := NewService(repo, clf)

	ci, err := svc.Submit(context.Background(), uuid.New(), "general", validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ci.RiskStatus != risk.StatusNeedsMonitoring {
		t.Errorf("unknown status should fall back to Needs Monitoring, got %q", ci.RiskStatus)
	}
}

func TestSubmit_HistoryFeedsClassifier(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, risk.NewRuleClassifier(risk.DefaultConfig()))
	patientID := uuid.New()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	repo.checkins = append(repo.checkins, &CheckIn{
		ID:          uuid.New(),
		PatientID:   patientID,
		CheckInDate: time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC),
		Pain:        2,
		Mobility:    risk.MobilityNormal,
	})

	req := validRequest()
	req.MedicationTaken = boolPtr(false)
	ci, err := svc.Submit(context.Background(), patientID, "general", req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Missed today after missed yesterday adds the consecutive penalty.
	withHistory := ci.RiskScore

	repo2 := &mockRepo{}
	svc2 := NewService(repo2, risk.NewRuleClassifier(risk.DefaultConfig()))
	ci2, err := svc2.Submit(context.Background(), uuid.New(), "general", req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if withHistory < ci2.RiskScore {
		t.Errorf("history should not lower the score: %d vs %d", withHistory, ci2.RiskScore)
	}
}

func TestSubmit_EscalatorFailureDoesNotFailSubmit(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, risk.NewRuleClassifier(risk.DefaultConfig()))
	svc.SetEscalator(failingEscalator{})

	if _, err := svc.Submit(context.Background(), uuid.New(), "general", validRequest()); err != nil {
		t.Fatalf("escalation failure must not fail the submission: %v", err)
	}
	if len(repo.checkins) != 1 {
		t.Error("check-in should be persisted")
	}
}

type failingEscalator struct{}

func (failingEscalator) DispatchCheckIn(context.Context, *CheckIn) error {
	return errors.New("dispatch failed")
}
