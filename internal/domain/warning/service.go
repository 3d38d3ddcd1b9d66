// Package warning derives the patient-facing warning list. It is purely a
// read model: deriving warnings never mutates patients, check-ins, or
// alerts.
package warning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/checkin"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/risk"
)

// Warning types, in the order they are returned.
const (
	TypeMissedCheckIn       = "missed_checkin"
	TypeMissedMedication    = "missed_medication"
	TypeHighRisk            = "high_risk"
	TypeUpcomingAppointment = "upcoming_appointment"
)

// Warning is a single active advisory shown to the patient.
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PatientSource resolves patients. Satisfied by the patient repository.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// CheckInSource reads check-in history. Satisfied by the check-in
// repository.
type CheckInSource interface {
	GetByPatientAndDate(ctx context.Context, patientID uuid.UUID, date time.Time) (*checkin.CheckIn, error)
	ListRecent(ctx context.Context, patientID uuid.UUID, n int) ([]*checkin.CheckIn, error)
}

type Service struct {
	patients  PatientSource
	checkins  CheckInSource
	lookahead time.Duration
	now       func() time.Time
}

// NewService constructs the aggregator. lookahead is how far ahead an
// appointment triggers the upcoming-appointment warning.
func NewService(patients PatientSource, checkins CheckInSource, lookahead time.Duration) *Service {
	return &Service{
		patients:  patients,
		checkins:  checkins,
		lookahead: lookahead,
		now:       time.Now,
	}
}

// Active returns the patient's current warnings in a fixed order: missed
// check-in, missed medication, high risk, upcoming appointment. Each
// warning appears at most once.
func (s *Service) Active(ctx context.Context, patientID uuid.UUID) ([]Warning, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient not found: %w", err)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	warnings := []Warning{}

	todayCheckIn, err := s.checkins.GetByPatientAndDate(ctx, patientID, today)
	if err != nil || todayCheckIn == nil {
		warnings = append(warnings, Warning{
			Type:    TypeMissedCheckIn,
			Message: "You have not submitted today's check-in yet.",
		})
	}

	if latest := s.latestCheckIn(ctx, patientID); latest != nil && !latest.MedicationTaken {
		warnings = append(warnings, Warning{
			Type:    TypeMissedMedication,
			Message: "Your last check-in reported missed medication. Please follow your prescription schedule.",
		})
	}

	if p.RecoveryStatus == risk.StatusHighRisk {
		warnings = append(warnings, Warning{
			Type:    TypeHighRisk,
			Message: "Your recovery status is High Risk. Your care team has been notified.",
		})
	}

	if p.AppointmentWithin(now, s.lookahead) {
		msg := "You have an upcoming appointment"
		if p.NextAppointmentDept != nil {
			msg += " with " + *p.NextAppointmentDept
		}
		msg += " on " + p.NextAppointmentDate.Format("Jan 2")
		if p.NextAppointmentTime != nil {
			msg += " at " + *p.NextAppointmentTime
		}
		msg += "."
		warnings = append(warnings, Warning{Type: TypeUpcomingAppointment, Message: msg})
	}

	return warnings, nil
}

func (s *Service) latestCheckIn(ctx context.Context, patientID uuid.UUID) *checkin.CheckIn {
	recent, err := s.checkins.ListRecent(ctx, patientID, 1)
	if err != nil || len(recent) == 0 {
		return nil
	}
	return recent[0]
}
