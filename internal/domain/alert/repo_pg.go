package alert

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

const alertCols = `id, hospital_id, patient_id, type, severity, message, image_url,
	is_resolved, resolved_at, resolved_by, doctor_response, created_at`

func (r *repoPG) scan(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.HospitalID, &a.PatientID, &a.Type, &a.Severity,
		&a.Message, &a.ImageURL, &a.IsResolved, &a.ResolvedAt, &a.ResolvedBy,
		&a.DoctorResponse, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO alert (id, hospital_id, patient_id, type, severity, message, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.HospitalID, a.PatientID, a.Type, a.Severity, a.Message, a.ImageURL)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alert WHERE id = $1`, id))
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, resolved *bool, limit, offset int) ([]*Alert, int, error) {
	query := `SELECT ` + alertCols + ` FROM alert WHERE hospital_id = $1`
	countQuery := `SELECT COUNT(*) FROM alert WHERE hospital_id = $1`
	args := []interface{}{hospitalID}
	idx := 2

	if resolved != nil {
		query += fmt.Sprintf(` AND is_resolved = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_resolved = $%d`, idx)
		args = append(args, *resolved)
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
	var items []*Alert
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Alert, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM alert WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+alertCols+` FROM alert WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) ExistsUnresolvedSince(ctx context.Context, patientID uuid.UUID, alertType string, since time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM alert
			WHERE patient_id = $1 AND type = $2 AND is_resolved = FALSE AND created_at >= $3
		)`, patientID, alertType, since).Scan(&exists)
	return exists, err
}

func (r *repoPG) Resolve(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID, response *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE alert SET is_resolved=TRUE, resolved_at=NOW(), resolved_by=$2, doctor_response=$3
		WHERE id = $1 AND is_resolved = FALSE`, id, resolvedBy, response)
	return err
}
