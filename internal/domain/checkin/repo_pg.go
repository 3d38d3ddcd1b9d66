package checkin

import (
	"context"
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

const checkInCols = `id, patient_id, check_in_date, pain, mobility, medication_taken,
	fever, bleeding, infection_signs, breathing_issues, swelling, abnormal_discomfort,
	notes, risk_score, risk_status, assessment, created_at`

func (r *repoPG) scan(row pgx.Row) (*CheckIn, error) {
	var ci CheckIn
	err := row.Scan(&ci.ID, &ci.PatientID, &ci.CheckInDate, &ci.Pain, &ci.Mobility,
		&ci.MedicationTaken, &ci.Fever, &ci.Bleeding, &ci.InfectionSigns,
		&ci.BreathingIssues, &ci.Swelling, &ci.AbnormalDiscomfort,
		&ci.Notes, &ci.RiskScore, &ci.RiskStatus, &ci.Assessment, &ci.CreatedAt)
	return &ci, err
}

func (r *repoPG) Create(ctx context.Context, ci *CheckIn) error {
	ci.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO check_in (id, patient_id, check_in_date, pain, mobility, medication_taken,
			fever, bleeding, infection_signs, breathing_issues, swelling, abnormal_discomfort,
			notes, risk_score, risk_status, assessment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		ci.ID, ci.PatientID, ci.CheckInDate, ci.Pain, ci.Mobility, ci.MedicationTaken,
		ci.Fever, ci.Bleeding, ci.InfectionSigns, ci.BreathingIssues, ci.Swelling,
		ci.AbnormalDiscomfort, ci.Notes, ci.RiskScore, ci.RiskStatus, ci.Assessment)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CheckIn, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+checkInCols+` FROM check_in WHERE id = $1`, id))
}

func (r *repoPG) GetByPatientAndDate(ctx context.Context, patientID uuid.UUID, date time.Time) (*CheckIn, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+checkInCols+` FROM check_in
		WHERE patient_id = $1 AND check_in_date = $2`, patientID, date))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CheckIn, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM check_in WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+checkInCols+` FROM check_in WHERE patient_id = $1 ORDER BY check_in_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CheckIn
	for rows.Next() {
		ci, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ci)
	}
	return items, total, nil
}

func (r *repoPG) ListRecent(ctx context.Context, patientID uuid.UUID, n int) ([]*CheckIn, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+checkInCols+` FROM check_in WHERE patient_id = $1 ORDER BY check_in_date DESC LIMIT $2`, patientID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CheckIn
	for rows.Next() {
		ci, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ci)
	}
	return items, nil
}
