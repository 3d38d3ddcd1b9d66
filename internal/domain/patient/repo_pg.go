package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepulse/carepulse/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, hospital_id, name, age, gender, blood_group, mobile, email,
	surgery_type, surgery_category, surgery_date, discharge_date,
	pre_existing_conditions, prescribed_medicines, aftercare_instructions,
	recovery_status, recovery_score,
	doctor_name, doctor_email,
	next_appointment_date, next_appointment_time, next_appointment_dept,
	otp_code, otp_expires_at, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.HospitalID, &p.Name, &p.Age, &p.Gender, &p.BloodGroup,
		&p.Mobile, &p.Email,
		&p.SurgeryType, &p.SurgeryCategory, &p.SurgeryDate, &p.DischargeDate,
		&p.PreExistingConditions, &p.PrescribedMedicines, &p.AftercareInstructions,
		&p.RecoveryStatus, &p.RecoveryScore,
		&p.DoctorName, &p.DoctorEmail,
		&p.NextAppointmentDate, &p.NextAppointmentTime, &p.NextAppointmentDept,
		&p.OTPCode, &p.OTPExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, hospital_id, name, age, gender, blood_group, mobile, email,
			surgery_type, surgery_category, surgery_date, discharge_date,
			pre_existing_conditions, prescribed_medicines, aftercare_instructions,
			recovery_status, recovery_score,
			doctor_name, doctor_email,
			next_appointment_date, next_appointment_time, next_appointment_dept)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		p.ID, p.HospitalID, p.Name, p.Age, p.Gender, p.BloodGroup, p.Mobile, p.Email,
		p.SurgeryType, p.SurgeryCategory, p.SurgeryDate, p.DischargeDate,
		p.PreExistingConditions, p.PrescribedMedicines, p.AftercareInstructions,
		p.RecoveryStatus, p.RecoveryScore,
		p.DoctorName, p.DoctorEmail,
		p.NextAppointmentDate, p.NextAppointmentTime, p.NextAppointmentDept)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByMobile(ctx context.Context, mobile string) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE mobile = $1`, mobile))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET name=$2, age=$3, gender=$4, blood_group=$5, mobile=$6, email=$7,
			surgery_type=$8, surgery_category=$9, surgery_date=$10, discharge_date=$11,
			pre_existing_conditions=$12, prescribed_medicines=$13, aftercare_instructions=$14,
			doctor_name=$15, doctor_email=$16,
			next_appointment_date=$17, next_appointment_time=$18, next_appointment_dept=$19,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Age, p.Gender, p.BloodGroup, p.Mobile, p.Email,
		p.SurgeryType, p.SurgeryCategory, p.SurgeryDate, p.DischargeDate,
		p.PreExistingConditions, p.PrescribedMedicines, p.AftercareInstructions,
		p.DoctorName, p.DoctorEmail,
		p.NextAppointmentDate, p.NextAppointmentTime, p.NextAppointmentDept)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE hospital_id = $1`, hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient WHERE hospital_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patient WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["hospital_id"]; ok {
		query += fmt.Sprintf(` AND hospital_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND hospital_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["recovery_status"]; ok {
		query += fmt.Sprintf(` AND recovery_status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND recovery_status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["surgery_category"]; ok {
		query += fmt.Sprintf(` AND surgery_category = $%d`, idx)
		countQuery += fmt.Sprintf(` AND surgery_category = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["name"]; ok {
		query += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) UpdateRecovery(ctx context.Context, id uuid.UUID, status string, score int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET recovery_status=$2, recovery_score=$3, updated_at=NOW()
		WHERE id = $1`, id, status, score)
	return err
}

func (r *repoPG) UpdateAppointment(ctx context.Context, id uuid.UUID, date *time.Time, timeOfDay, dept *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET next_appointment_date=$2, next_appointment_time=$3,
			next_appointment_dept=$4, updated_at=NOW()
		WHERE id = $1`, id, date, timeOfDay, dept)
	return err
}

func (r *repoPG) SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET otp_code=$2, otp_expires_at=$3, updated_at=NOW()
		WHERE id = $1`, id, code, expiresAt)
	return err
}

func (r *repoPG) ClearOTP(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET otp_code=NULL, otp_expires_at=NULL, updated_at=NOW()
		WHERE id = $1`, id)
	return err
}
