package patient

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/risk"
	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/internal/platform/notification"
)

var validCategories = map[string]bool{
	CategoryCardiac: true, CategoryOrthopedic: true, CategoryAbdominal: true,
	CategoryNeurological: true, CategoryGeneral: true,
}

// Service carries patient CRUD plus the OTP login flow.
type Service struct {
	repo      Repository
	notifier  *notification.Manager
	jwtSecret string
	otpTTL    time.Duration
	tokenTTL  time.Duration
}

func NewService(repo Repository, notifier *notification.Manager, jwtSecret string, otpTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		notifier:  notifier,
		jwtSecret: jwtSecret,
		otpTTL:    otpTTL,
		tokenTTL:  24 * time.Hour,
	}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.HospitalID == uuid.Nil {
		return fmt.Errorf("hospital_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	if p.SurgeryType == "" {
		return fmt.Errorf("surgery_type is required")
	}
	if p.SurgeryCategory == "" {
		p.SurgeryCategory = CategoryGeneral
	}
	if !validCategories[p.SurgeryCategory] {
		return fmt.Errorf("invalid surgery_category: %s", p.SurgeryCategory)
	}
	if p.SurgeryDate.IsZero() {
		return fmt.Errorf("surgery_date is required")
	}
	p.RecoveryStatus = risk.StatusStable
	p.RecoveryScore = 100
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.SurgeryCategory != "" && !validCategories[p.SurgeryCategory] {
		return fmt.Errorf("invalid surgery_category: %s", p.SurgeryCategory)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListByHospital(ctx, hospitalID, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// SetRecovery overrides a patient's recovery status and score, used by
// clinicians to correct the automatic classification.
func (s *Service) SetRecovery(ctx context.Context, id uuid.UUID, status string, score int) error {
	if !risk.ValidStatus(status) {
		return fmt.Errorf("invalid recovery_status: %s", status)
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("recovery_score must be between 0 and 100, got %d", score)
	}
	return s.repo.UpdateRecovery(ctx, id, status, score)
}

// SetAppointment updates the patient's next appointment.
func (s *Service) SetAppointment(ctx context.Context, id uuid.UUID, date *time.Time, timeOfDay, dept *string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("patient not found: %w", err)
	}
	return s.repo.UpdateAppointment(ctx, id, date, timeOfDay, dept)
}

// RequestOTP generates a one-time login code for the patient with the given
// mobile number and sends it by SMS.
func (s *Service) RequestOTP(ctx context.Context, mobile string) error {
	p, err := s.repo.GetByMobile(ctx, mobile)
	if err != nil {
		return fmt.Errorf("no patient registered with this mobile number")
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	expires := time.Now().Add(s.otpTTL)
	if err := s.repo.SetOTP(ctx, p.ID, code, expires); err != nil {
		return err
	}

	_, err = s.notifier.SendFromTemplate(ctx, "otp-login", map[string]string{
		"code":        code,
		"ttl_minutes": fmt.Sprintf("%d", int(s.otpTTL.Minutes())),
	}, p.Mobile)
	return err
}

// VerifyOTP checks the code and, when valid, clears it and returns a signed
// patient token. Codes are single-use and expire after the configured TTL.
func (s *Service) VerifyOTP(ctx context.Context, mobile, code string) (string, *Patient, error) {
	p, err := s.repo.GetByMobile(ctx, mobile)
	if err != nil {
		return "", nil, fmt.Errorf("invalid mobile number or code")
	}
	if p.OTPCode == nil || p.OTPExpiresAt == nil {
		return "", nil, fmt.Errorf("no login code requested")
	}
	if time.Now().After(*p.OTPExpiresAt) {
		return "", nil, fmt.Errorf("login code expired")
	}
	if subtle.ConstantTimeCompare([]byte(*p.OTPCode), []byte(code)) != 1 {
		return "", nil, fmt.Errorf("invalid mobile number or code")
	}

	if err := s.repo.ClearOTP(ctx, p.ID); err != nil {
		return "", nil, err
	}

	token, err := auth.IssueToken(s.jwtSecret, p.ID, auth.RolePatient, p.HospitalID.String(), s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
