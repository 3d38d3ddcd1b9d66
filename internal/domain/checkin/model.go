package checkin

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn maps to the check_in table. One record per patient per calendar
// day; records are immutable once written.
type CheckIn struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	CheckInDate time.Time `db:"check_in_date" json:"check_in_date"`

	Pain            int    `db:"pain" json:"pain"`
	Mobility        string `db:"mobility" json:"mobility"`
	MedicationTaken bool   `db:"medication_taken" json:"medication_taken"`

	Fever              bool `db:"fever" json:"fever"`
	Bleeding           bool `db:"bleeding" json:"bleeding"`
	InfectionSigns     bool `db:"infection_signs" json:"infection_signs"`
	BreathingIssues    bool `db:"breathing_issues" json:"breathing_issues"`
	Swelling           bool `db:"swelling" json:"swelling"`
	AbnormalDiscomfort bool `db:"abnormal_discomfort" json:"abnormal_discomfort"`

	Notes *string `db:"notes" json:"notes,omitempty"`

	RiskScore  int    `db:"risk_score" json:"risk_score"`
	RiskStatus string `db:"risk_status" json:"risk_status"`
	Assessment string `db:"assessment" json:"assessment"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
