package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/risk"
)

// Escalator reacts to a freshly persisted check-in: status changes, alerts,
// clinician notification, realtime updates. Implemented by the escalation
// dispatcher; escalation runs after persistence and never undoes it.
type Escalator interface {
	DispatchCheckIn(ctx context.Context, ci *CheckIn) error
}

// noopEscalator is used when no dispatcher is attached.
type noopEscalator struct{}

func (noopEscalator) DispatchCheckIn(context.Context, *CheckIn) error { return nil }

const fallbackAssessment = "Automatic assessment unavailable; answers recorded for clinician review."

var validMobility = map[string]bool{
	risk.MobilityNormal: true, risk.MobilityLimited: true, risk.MobilityBedridden: true,
}

// SubmitRequest is one day's questionnaire. Pain and MedicationTaken are
// pointers so an omitted answer is distinguishable from a zero value.
type SubmitRequest struct {
	Pain            *int   `json:"pain"`
	Mobility        string `json:"mobility"`
	MedicationTaken *bool  `json:"medication_taken"`

	Fever              bool `json:"fever"`
	Bleeding           bool `json:"bleeding"`
	InfectionSigns     bool `json:"infection_signs"`
	BreathingIssues    bool `json:"breathing_issues"`
	Swelling           bool `json:"swelling"`
	AbnormalDiscomfort bool `json:"abnormal_discomfort"`

	Notes *string `json:"notes,omitempty"`
}

type Service struct {
	repo       Repository
	classifier risk.Classifier
	rules      *risk.RuleClassifier
	escalator  Escalator
	now        func() time.Time
}

func NewService(repo Repository, classifier risk.Classifier) *Service {
	return &Service{
		repo:       repo,
		classifier: classifier,
		rules:      risk.NewRuleClassifier(risk.DefaultConfig()),
		escalator:  noopEscalator{},
		now:        time.Now,
	}
}

// SetEscalator attaches the escalation dispatcher. Wired in main; a setter
// because the dispatcher itself depends on this package's CheckIn type.
func (s *Service) SetEscalator(e Escalator) {
	s.escalator = e
}

// Submit validates the questionnaire, classifies it, persists exactly one
// CheckIn for today, and hands it to the escalation dispatcher. A failed
// classification never blocks persistence: the raw answers are the
// clinically important artifact.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, surgeryCategory string, req SubmitRequest) (*CheckIn, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Pain == nil {
		return nil, fmt.Errorf("pain is required")
	}
	if *req.Pain < 0 || *req.Pain > 10 {
		return nil, fmt.Errorf("pain must be between 0 and 10, got %d", *req.Pain)
	}
	if !validMobility[req.Mobility] {
		return nil, fmt.Errorf("invalid mobility: %q", req.Mobility)
	}
	if req.MedicationTaken == nil {
		return nil, fmt.Errorf("medication_taken must be answered")
	}

	today := s.today()
	if existing, err := s.repo.GetByPatientAndDate(ctx, patientID, today); err == nil && existing != nil {
		return nil, fmt.Errorf("check-in already submitted today")
	}

	history, err := s.repo.ListRecent(ctx, patientID, 3)
	if err != nil {
		history = nil
	}

	input := risk.Input{
		SurgeryCategory:    surgeryCategory,
		Pain:               *req.Pain,
		Mobility:           req.Mobility,
		Fever:              req.Fever,
		Bleeding:           req.Bleeding,
		InfectionSigns:     req.InfectionSigns,
		BreathingIssues:    req.BreathingIssues,
		Swelling:           req.Swelling,
		AbnormalDiscomfort: req.AbnormalDiscomfort,
		MedicationTaken:    *req.MedicationTaken,
		History:            snapshots(history),
	}

	res, err := s.classifier.Classify(ctx, input)
	if err != nil {
		res, _ = s.rules.Classify(ctx, input)
		res.Assessment = fallbackAssessment
	}
	res.Score = risk.Clamp(res.Score)
	if !risk.ValidStatus(res.Status) {
		res.Status = risk.StatusNeedsMonitoring
	}

	ci := &CheckIn{
		PatientID:          patientID,
		CheckInDate:        today,
		Pain:               *req.Pain,
		Mobility:           req.Mobility,
		MedicationTaken:    *req.MedicationTaken,
		Fever:              req.Fever,
		Bleeding:           req.Bleeding,
		InfectionSigns:     req.InfectionSigns,
		BreathingIssues:    req.BreathingIssues,
		Swelling:           req.Swelling,
		AbnormalDiscomfort: req.AbnormalDiscomfort,
		Notes:              req.Notes,
		RiskScore:          res.Score,
		RiskStatus:         res.Status,
		Assessment:         res.Assessment,
	}
	if err := s.repo.Create(ctx, ci); err != nil {
		return nil, err
	}

	// Escalation is best-effort; the dispatcher logs its own failures.
	_ = s.escalator.DispatchCheckIn(ctx, ci)

	return ci, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CheckIn, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CheckIn, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Today returns the patient's check-in for the current date, if any.
func (s *Service) Today(ctx context.Context, patientID uuid.UUID) (*CheckIn, error) {
	return s.repo.GetByPatientAndDate(ctx, patientID, s.today())
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func snapshots(history []*CheckIn) []risk.CheckInSnapshot {
	out := make([]risk.CheckInSnapshot, 0, len(history))
	for _, ci := range history {
		out = append(out, risk.CheckInSnapshot{
			Pain:            ci.Pain,
			MedicationTaken: ci.MedicationTaken,
		})
	}
	return out
}
