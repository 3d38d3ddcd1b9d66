package escalation

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepulse/carepulse/internal/domain/alert"
	"github.com/carepulse/carepulse/internal/domain/checkin"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/risk"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/realtime"
)

type patientStore struct {
	patients map[uuid.UUID]*patient.Patient
}

func (s *patientStore) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (s *patientStore) UpdateRecovery(_ context.Context, id uuid.UUID, status string, score int) error {
	p, ok := s.patients[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.RecoveryStatus = status
	p.RecoveryScore = score
	return nil
}

type alertStore struct {
	alerts []*alert.Alert
}

func (s *alertStore) Create(_ context.Context, a *alert.Alert) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *alertStore) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	for _, a := range s.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (s *alertStore) ListByHospital(context.Context, uuid.UUID, *bool, int, int) ([]*alert.Alert, int, error) {
	return s.alerts, len(s.alerts), nil
}

func (s *alertStore) ListByPatient(context.Context, uuid.UUID, int, int) ([]*alert.Alert, int, error) {
	return s.alerts, len(s.alerts), nil
}

func (s *alertStore) ExistsUnresolvedSince(_ context.Context, patientID uuid.UUID, alertType string, since time.Time) (bool, error) {
	for _, a := range s.alerts {
		if a.PatientID == patientID && a.Type == alertType && !a.IsResolved && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *alertStore) Resolve(_ context.Context, id uuid.UUID, resolvedBy *uuid.UUID, response *string) error {
	for _, a := range s.alerts {
		if a.ID == id && !a.IsResolved {
			now := time.Now()
			a.IsResolved = true
			a.ResolvedAt = &now
			a.ResolvedBy = resolvedBy
			a.DoctorResponse = response
		}
	}
	return nil
}

type capturingPublisher struct {
	events []realtime.Event
}

func (c *capturingPublisher) Publish(_ context.Context, evt realtime.Event) error {
	c.events = append(c.events, evt)
	return nil
}

type fixture struct {
	dispatcher *Dispatcher
	patients   *patientStore
	alerts     *alertStore
	email      *notification.MockEmailSender
	publisher  *capturingPublisher
	patient    *patient.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctorEmail := "doctor@hospital.example"
	p := &patient.Patient{
		ID:             uuid.New(),
		HospitalID:     uuid.New(),
		Name:           "Jane Doe",
		SurgeryType:    "Knee Replacement",
		RecoveryStatus: risk.StatusStable,
		RecoveryScore:  100,
		DoctorEmail:    &doctorEmail,
	}

	patients := &patientStore{patients: map[uuid.UUID]*patient.Patient{p.ID: p}}
	alerts := &alertStore{}
	email := &notification.MockEmailSender{}
	mgr := notification.NewManager(email, &notification.MockSMSSender{}, notification.NewTemplateEngine())
	publisher := &capturingPublisher{}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	d := NewDispatcher(patients, alert.NewService(alerts), mgr, publisher, realtime.NewSequencer(), logger)
	return &fixture{
		dispatcher: d,
		patients:   patients,
		alerts:     alerts,
		email:      email,
		publisher:  publisher,
		patient:    p,
	}
}

func highRiskCheckIn(patientID uuid.UUID) *checkin.CheckIn {
	return &checkin.CheckIn{
		ID:         uuid.New(),
		PatientID:  patientID,
		Pain:       9,
		Mobility:   risk.MobilityLimited,
		Fever:      true,
		RiskScore:  85,
		RiskStatus: risk.StatusHighRisk,
		Assessment: "Classified High Risk due to: severe pain (9/10), fever.",
	}
}

func TestDispatchCheckIn_HighRisk(t *testing.T) {
	f := newFixture(t)

	ci := highRiskCheckIn(f.patient.ID)
	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), ci))

	assert.Equal(t, risk.StatusHighRisk, f.patient.RecoveryStatus)
	assert.Equal(t, 15, f.patient.RecoveryScore, "score should be 100 minus risk")

	require.Len(t, f.alerts.alerts, 1)
	a := f.alerts.alerts[0]
	assert.Equal(t, alert.TypeCheckInEscalation, a.Type)
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	assert.Contains(t, a.Message, "Jane Doe")

	require.Len(t, f.email.Calls(), 1)
	assert.Equal(t, "doctor@hospital.example", f.email.Calls()[0].To)

	types := eventTypes(f.publisher.events)
	assert.Contains(t, types, realtime.EventAlertCreated)
	assert.Contains(t, types, realtime.EventCheckInCreated)
	assert.Contains(t, types, realtime.EventPatientUpdated)
}

func TestDispatchCheckIn_RepeatedHighRiskStillAlerts(t *testing.T) {
	f := newFixture(t)
	f.patient.RecoveryStatus = risk.StatusHighRisk

	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), highRiskCheckIn(f.patient.ID)))
	assert.Len(t, f.alerts.alerts, 1, "an already High Risk patient still raises a fresh Critical alert")
}

func TestDispatchCheckIn_StableToMonitoring(t *testing.T) {
	f := newFixture(t)

	ci := &checkin.CheckIn{
		ID:         uuid.New(),
		PatientID:  f.patient.ID,
		Pain:       6,
		RiskScore:  45,
		RiskStatus: risk.StatusNeedsMonitoring,
		Assessment: "moderate pain",
	}
	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), ci))

	assert.Equal(t, risk.StatusNeedsMonitoring, f.patient.RecoveryStatus)
	require.Len(t, f.alerts.alerts, 1)
	assert.Equal(t, alert.SeverityHigh, f.alerts.alerts[0].Severity)
}

func TestDispatchCheckIn_MonitoringAlertDedupedWithinDay(t *testing.T) {
	f := newFixture(t)

	ci := &checkin.CheckIn{
		ID: uuid.New(), PatientID: f.patient.ID,
		RiskScore: 45, RiskStatus: risk.StatusNeedsMonitoring, Assessment: "x",
	}
	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), ci))
	require.Len(t, f.alerts.alerts, 1)

	// Same step up again with the first alert still open: no duplicate.
	f.patient.RecoveryStatus = risk.StatusStable
	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), ci))
	assert.Len(t, f.alerts.alerts, 1)
}

func TestDispatchCheckIn_StatusDowngradeCreatesNoAlert(t *testing.T) {
	f := newFixture(t)
	f.patient.RecoveryStatus = risk.StatusHighRisk

	ci := &checkin.CheckIn{
		ID: uuid.New(), PatientID: f.patient.ID,
		RiskScore: 10, RiskStatus: risk.StatusStable, Assessment: "recovering well",
	}
	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), ci))

	assert.Equal(t, risk.StatusStable, f.patient.RecoveryStatus)
	assert.Equal(t, 90, f.patient.RecoveryScore)
	assert.Empty(t, f.alerts.alerts)
}

func TestDispatchCheckIn_NotificationFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.email.ShouldFail = true
	f.email.FailError = "relay down"

	err := f.dispatcher.DispatchCheckIn(context.Background(), highRiskCheckIn(f.patient.ID))
	assert.NoError(t, err, "notification failure is logged, not propagated")
	assert.Len(t, f.alerts.alerts, 1, "alert still created")
}

func TestDispatchCheckIn_RevisionsIncrease(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.dispatcher.DispatchCheckIn(context.Background(), highRiskCheckIn(f.patient.ID)))

	var last uint64
	for _, evt := range f.publisher.events {
		assert.Greater(t, evt.Revision, last, "revisions must increase per patient")
		last = evt.Revision
	}
}

func TestEmergency(t *testing.T) {
	f := newFixture(t)

	a, err := f.dispatcher.Emergency(context.Background(), f.patient.ID, "chest pain")
	require.NoError(t, err)

	assert.Equal(t, alert.TypeEmergency, a.Type)
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	assert.Len(t, f.alerts.alerts, 1, "exactly one alert")
	assert.Equal(t, risk.StatusHighRisk, f.patient.RecoveryStatus)
	require.Len(t, f.email.Calls(), 1)
	assert.Contains(t, f.email.Calls()[0].Subject, "EMERGENCY")
}

func TestEmergency_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher.Emergency(context.Background(), uuid.New(), "help")
	assert.Error(t, err)
}

func TestConcern(t *testing.T) {
	f := newFixture(t)

	img := "uploads/wound.jpg"
	a, err := f.dispatcher.Concern(context.Background(), f.patient.ID, "the incision looks red", &img)
	require.NoError(t, err)

	assert.Equal(t, alert.TypePatientConcern, a.Type)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	require.NotNil(t, a.ImageURL)
	assert.Equal(t, img, *a.ImageURL)
	assert.Equal(t, risk.StatusStable, f.patient.RecoveryStatus, "concerns never change recovery status")
	assert.Len(t, f.email.Calls(), 1)
}

func TestConcern_RequiresMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher.Concern(context.Background(), f.patient.ID, "", nil)
	assert.Error(t, err)
	assert.Empty(t, f.alerts.alerts)
}

func eventTypes(events []realtime.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
