package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMobile(ctx context.Context, mobile string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)

	UpdateRecovery(ctx context.Context, id uuid.UUID, status string, score int) error
	UpdateAppointment(ctx context.Context, id uuid.UUID, date *time.Time, timeOfDay, dept *string) error

	SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id uuid.UUID) error
}
