package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for alerts.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, resolved *bool, limit, offset int) ([]*Alert, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Alert, int, error)
	ExistsUnresolvedSince(ctx context.Context, patientID uuid.UUID, alertType string, since time.Time) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID, response *string) error
}
