// Package escalation reacts to new clinical information: it moves patients
// between recovery statuses, creates alerts, notifies the assigned
// clinician, and pushes realtime updates to hospital dashboards. All side
// effects here are best-effort; a failed notification or realtime publish is
// logged and never propagated back to the patient-facing request.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/domain/alert"
	"github.com/carepulse/carepulse/internal/domain/checkin"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/risk"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/realtime"
)

// PatientStore is the slice of the patient repository the dispatcher needs.
type PatientStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	UpdateRecovery(ctx context.Context, id uuid.UUID, status string, score int) error
}

// Dispatcher implements the escalation flow, including checkin.Escalator.
type Dispatcher struct {
	patients  PatientStore
	alerts    *alert.Service
	notifier  *notification.Manager
	publisher realtime.Publisher
	sequencer *realtime.Sequencer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewDispatcher(patients PatientStore, alerts *alert.Service, notifier *notification.Manager, publisher realtime.Publisher, sequencer *realtime.Sequencer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		patients:  patients,
		alerts:    alerts,
		notifier:  notifier,
		publisher: publisher,
		sequencer: sequencer,
		logger:    logger,
		now:       time.Now,
	}
}

// DispatchCheckIn applies a freshly persisted check-in to the patient's
// recovery state. The patient's score becomes 100 minus the check-in's risk
// score. A High Risk check-in always creates a Critical alert, even when the
// patient is already High Risk; a step up from Stable to Needs Monitoring
// creates a High alert unless one is already open from today.
func (d *Dispatcher) DispatchCheckIn(ctx context.Context, ci *checkin.CheckIn) error {
	p, err := d.patients.GetByID(ctx, ci.PatientID)
	if err != nil {
		d.logger.Error().Err(err).Str("patient_id", ci.PatientID.String()).Msg("escalation: patient lookup failed")
		return err
	}

	prior := p.RecoveryStatus
	newStatus := ci.RiskStatus
	newScore := 100 - ci.RiskScore

	if err := d.patients.UpdateRecovery(ctx, p.ID, newStatus, newScore); err != nil {
		d.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("escalation: recovery update failed")
		return err
	}

	switch {
	case newStatus == risk.StatusHighRisk:
		a := &alert.Alert{
			HospitalID: p.HospitalID,
			PatientID:  p.ID,
			Type:       alert.TypeCheckInEscalation,
			Severity:   alert.SeverityCritical,
			Message:    fmt.Sprintf("%s is now High Risk. %s", p.Name, ci.Assessment),
		}
		if err := d.alerts.Create(ctx, a); err != nil {
			d.logger.Error().Err(err).Msg("escalation: alert creation failed")
		} else {
			d.publishAlert(ctx, p, a)
			d.emailDoctor(ctx, p, "high-risk-alert", map[string]string{
				"patient_name": p.Name,
				"surgery_type": p.SurgeryType,
				"assessment":   ci.Assessment,
			})
		}

	case newStatus == risk.StatusNeedsMonitoring && prior == risk.StatusStable:
		startOfDay := d.startOfDay()
		open, err := d.alerts.HasUnresolvedSince(ctx, p.ID, alert.TypeCheckInEscalation, startOfDay)
		if err != nil {
			d.logger.Warn().Err(err).Msg("escalation: duplicate check failed")
		}
		if !open {
			a := &alert.Alert{
				HospitalID: p.HospitalID,
				PatientID:  p.ID,
				Type:       alert.TypeCheckInEscalation,
				Severity:   alert.SeverityHigh,
				Message:    fmt.Sprintf("%s needs monitoring. %s", p.Name, ci.Assessment),
			}
			if err := d.alerts.Create(ctx, a); err != nil {
				d.logger.Error().Err(err).Msg("escalation: alert creation failed")
			} else {
				d.publishAlert(ctx, p, a)
				d.emailDoctor(ctx, p, "monitoring-alert", map[string]string{
					"patient_name": p.Name,
					"surgery_type": p.SurgeryType,
					"assessment":   ci.Assessment,
				})
			}
		}
	}

	d.publishEvent(ctx, p.HospitalID.String(), realtime.EventCheckInCreated, p.ID, ci)
	d.publishPatient(ctx, p.HospitalID.String(), p.ID, newStatus, newScore)
	return nil
}

// Emergency handles the patient's emergency button: exactly one Critical
// alert, the patient moves to High Risk immediately, independent of any
// check-in state.
func (d *Dispatcher) Emergency(ctx context.Context, patientID uuid.UUID, description string) (*alert.Alert, error) {
	p, err := d.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient not found: %w", err)
	}
	if description == "" {
		description = "Emergency assistance requested"
	}

	a := &alert.Alert{
		HospitalID: p.HospitalID,
		PatientID:  p.ID,
		Type:       alert.TypeEmergency,
		Severity:   alert.SeverityCritical,
		Message:    fmt.Sprintf("EMERGENCY: %s. %s", p.Name, description),
	}
	if err := d.alerts.Create(ctx, a); err != nil {
		return nil, err
	}

	if err := d.patients.UpdateRecovery(ctx, p.ID, risk.StatusHighRisk, 0); err != nil {
		d.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("escalation: recovery update failed")
	}

	d.publishAlert(ctx, p, a)
	d.publishPatient(ctx, p.HospitalID.String(), p.ID, risk.StatusHighRisk, 0)
	d.emailDoctor(ctx, p, "emergency-alert", map[string]string{
		"patient_name": p.Name,
		"description":  description,
	})
	return a, nil
}

// Concern records a patient-raised concern with an optional image. It
// creates a High alert and notifies the clinician but never changes the
// patient's recovery status.
func (d *Dispatcher) Concern(ctx context.Context, patientID uuid.UUID, message string, imageURL *string) (*alert.Alert, error) {
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	p, err := d.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient not found: %w", err)
	}

	a := &alert.Alert{
		HospitalID: p.HospitalID,
		PatientID:  p.ID,
		Type:       alert.TypePatientConcern,
		Severity:   alert.SeverityHigh,
		Message:    fmt.Sprintf("%s raised a concern: %s", p.Name, message),
		ImageURL:   imageURL,
	}
	if err := d.alerts.Create(ctx, a); err != nil {
		return nil, err
	}

	d.publishAlert(ctx, p, a)
	d.emailDoctor(ctx, p, "patient-concern", map[string]string{
		"patient_name": p.Name,
		"message":      message,
	})
	return a, nil
}

// PublishAlertResolved pushes a resolution to the hospital dashboard. Wired
// as the alert service's resolve hook.
func (d *Dispatcher) PublishAlertResolved(ctx context.Context, a *alert.Alert) {
	d.publishEvent(ctx, a.HospitalID.String(), realtime.EventAlertResolved, a.PatientID, a)
}

func (d *Dispatcher) emailDoctor(ctx context.Context, p *patient.Patient, templateID string, data map[string]string) {
	if p.DoctorEmail == nil || *p.DoctorEmail == "" {
		d.logger.Warn().Str("patient_id", p.ID.String()).Msg("escalation: no doctor email on file")
		return
	}
	if _, err := d.notifier.SendFromTemplate(ctx, templateID, data, *p.DoctorEmail); err != nil {
		d.logger.Error().Err(err).
			Str("patient_id", p.ID.String()).
			Str("template", templateID).
			Msg("escalation: clinician notification failed")
	}
}

func (d *Dispatcher) publishAlert(ctx context.Context, p *patient.Patient, a *alert.Alert) {
	d.publishEvent(ctx, p.HospitalID.String(), realtime.EventAlertCreated, p.ID, a)
}

func (d *Dispatcher) publishPatient(ctx context.Context, hospitalID string, patientID uuid.UUID, status string, score int) {
	payload := map[string]interface{}{
		"recovery_status": status,
		"recovery_score":  score,
	}
	d.publishEvent(ctx, hospitalID, realtime.EventPatientUpdated, patientID, payload)
}

func (d *Dispatcher) publishEvent(ctx context.Context, hospitalID, eventType string, patientID uuid.UUID, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error().Err(err).Msg("escalation: event payload marshal failed")
		return
	}
	evt := realtime.Event{
		Type:      eventType,
		Topic:     hospitalID,
		PatientID: patientID.String(),
		Revision:  d.sequencer.Next(patientID.String()),
		Timestamp: d.now().UTC(),
		Data:      data,
	}
	if err := d.publisher.Publish(ctx, evt); err != nil {
		d.logger.Warn().Err(err).Str("type", eventType).Msg("escalation: realtime publish failed")
	}
}

func (d *Dispatcher) startOfDay() time.Time {
	now := d.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
