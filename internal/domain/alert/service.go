package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validTypes = map[string]bool{
	TypeCheckInEscalation: true, TypeEmergency: true, TypePatientConcern: true,
}

var validSeverities = map[string]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

type Service struct {
	repo      Repository
	onResolve func(ctx context.Context, a *Alert)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetResolveHook attaches an optional callback invoked after an alert
// transitions to resolved. Used to push realtime updates.
func (s *Service) SetResolveHook(fn func(ctx context.Context, a *Alert)) {
	s.onResolve = fn
}

func (s *Service) Create(ctx context.Context, a *Alert) error {
	if a.HospitalID == uuid.Nil {
		return fmt.Errorf("hospital_id is required")
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("invalid type: %s", a.Type)
	}
	if !validSeverities[a.Severity] {
		return fmt.Errorf("invalid severity: %s", a.Severity)
	}
	if a.Message == "" {
		return fmt.Errorf("message is required")
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByHospital(ctx context.Context, hospitalID uuid.UUID, resolved *bool, limit, offset int) ([]*Alert, int, error) {
	return s.repo.ListByHospital(ctx, hospitalID, resolved, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Alert, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// HasUnresolvedSince reports whether the patient has an open alert of the
// given type created at or after since. Used to suppress duplicate
// escalation alerts within a day.
func (s *Service) HasUnresolvedSince(ctx context.Context, patientID uuid.UUID, alertType string, since time.Time) (bool, error) {
	return s.repo.ExistsUnresolvedSince(ctx, patientID, alertType, since)
}

// Resolve marks an alert resolved with the clinician's response. Resolving an
// already-resolved alert is a no-op: the original timestamp, resolver, and
// response are kept even if a different response is supplied.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID, response *string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsResolved {
		return a, nil
	}
	if err := s.repo.Resolve(ctx, id, resolvedBy, response); err != nil {
		return nil, err
	}
	resolved, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.onResolve != nil {
		s.onResolve(ctx, resolved)
	}
	return resolved, nil
}
