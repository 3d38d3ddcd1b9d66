package checkin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for check-ins. There is no update
// or delete: check-ins are append-only.
type Repository interface {
	Create(ctx context.Context, ci *CheckIn) error
	GetByID(ctx context.Context, id uuid.UUID) (*CheckIn, error)
	GetByPatientAndDate(ctx context.Context, patientID uuid.UUID, date time.Time) (*CheckIn, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CheckIn, int, error)
	ListRecent(ctx context.Context, patientID uuid.UUID, n int) ([]*CheckIn, error)
}
