package patient

import (
	"time"

	"github.com/google/uuid"
)

// Surgery categories drive which symptom flags the mobile client shows, but
// the server accepts the full flag set for any category.
const (
	CategoryCardiac      = "cardiac"
	CategoryOrthopedic   = "orthopedic"
	CategoryAbdominal    = "abdominal"
	CategoryNeurological = "neurological"
	CategoryGeneral      = "general"
)

// Patient maps to the patient table. RecoveryScore runs 0-100 where higher
// means a smoother recovery; new patients start at 100. OTP fields are
// cleared after each successful login.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	HospitalID      uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	Name            string     `db:"name" json:"name"`
	Age             *int       `db:"age" json:"age,omitempty"`
	Gender          *string    `db:"gender" json:"gender,omitempty"`
	BloodGroup      *string    `db:"blood_group" json:"blood_group,omitempty"`
	Mobile          string     `db:"mobile" json:"mobile"`
	Email           *string    `db:"email" json:"email,omitempty"`
	SurgeryType     string     `db:"surgery_type" json:"surgery_type"`
	SurgeryCategory string     `db:"surgery_category" json:"surgery_category"`
	SurgeryDate     time.Time  `db:"surgery_date" json:"surgery_date"`
	DischargeDate   *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`

	PreExistingConditions *string `db:"pre_existing_conditions" json:"pre_existing_conditions,omitempty"`
	PrescribedMedicines   *string `db:"prescribed_medicines" json:"prescribed_medicines,omitempty"`
	AftercareInstructions *string `db:"aftercare_instructions" json:"aftercare_instructions,omitempty"`

	RecoveryStatus string `db:"recovery_status" json:"recovery_status"`
	RecoveryScore  int    `db:"recovery_score" json:"recovery_score"`

	DoctorName  *string `db:"doctor_name" json:"doctor_name,omitempty"`
	DoctorEmail *string `db:"doctor_email" json:"doctor_email,omitempty"`

	NextAppointmentDate *time.Time `db:"next_appointment_date" json:"next_appointment_date,omitempty"`
	NextAppointmentTime *string    `db:"next_appointment_time" json:"next_appointment_time,omitempty"`
	NextAppointmentDept *string    `db:"next_appointment_dept" json:"next_appointment_dept,omitempty"`

	OTPCode      *string    `db:"otp_code" json:"-"`
	OTPExpiresAt *time.Time `db:"otp_expires_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AppointmentWithin reports whether the patient's next appointment falls in
// the window [now, now+lookahead].
func (p *Patient) AppointmentWithin(now time.Time, lookahead time.Duration) bool {
	if p.NextAppointmentDate == nil {
		return false
	}
	appt := *p.NextAppointmentDate
	if appt.Before(now.Truncate(24 * time.Hour)) {
		return false
	}
	return !appt.After(now.Add(lookahead))
}
