package alert

import (
	"time"

	"github.com/google/uuid"
)

// Alert types.
const (
	TypeCheckInEscalation = "Check-in Escalation"
	TypeEmergency         = "Emergency"
	TypePatientConcern    = "Patient Concern"
)

// Severities in increasing order.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Alert maps to the alert table. Resolution is one-directional: once
// resolved an alert never reopens.
type Alert struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	HospitalID uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	Type       string     `db:"type" json:"type"`
	Severity   string     `db:"severity" json:"severity"`
	Message    string     `db:"message" json:"message"`
	ImageURL   *string    `db:"image_url" json:"image_url,omitempty"`
	IsResolved bool       `db:"is_resolved" json:"is_resolved"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`

	// DoctorResponse is the clinician's note attached when resolving.
	DoctorResponse *string `db:"doctor_response" json:"doctor_response,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
