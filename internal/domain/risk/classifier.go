// Package risk scores post-surgery check-ins and maps them onto a recovery
// status. Classification never gates persistence: callers persist the
// check-in first and apply the classification result afterwards.
package risk

import (
	"context"
	"fmt"
	"strings"
)

// Recovery statuses in increasing order of severity.
const (
	StatusStable          = "Stable"
	StatusNeedsMonitoring = "Needs Monitoring"
	StatusHighRisk        = "High Risk"
)

// Mobility levels reported in a check-in.
const (
	MobilityNormal    = "Normal"
	MobilityLimited   = "Limited"
	MobilityBedridden = "Bedridden"
)

// Severity returns a rank for comparing statuses. Unknown statuses rank
// lowest.
func Severity(status string) int {
	switch status {
	case StatusHighRisk:
		return 2
	case StatusNeedsMonitoring:
		return 1
	case StatusStable:
		return 0
	}
	return -1
}

// ValidStatus reports whether s is one of the recognized recovery statuses.
func ValidStatus(s string) bool {
	return Severity(s) >= 0
}

// CheckInSnapshot is the slice of a prior check-in the classifier looks at
// for trends. Snapshots are ordered most recent first.
type CheckInSnapshot struct {
	Pain            int  `json:"pain"`
	MedicationTaken bool `json:"medication_taken"`
}

// Input is everything a classifier sees for one check-in.
type Input struct {
	SurgeryCategory    string            `json:"surgery_category,omitempty"`
	Pain               int               `json:"pain"`
	Mobility           string            `json:"mobility"`
	Fever              bool              `json:"fever"`
	Bleeding           bool              `json:"bleeding"`
	InfectionSigns     bool              `json:"infection_signs"`
	BreathingIssues    bool              `json:"breathing_issues"`
	Swelling           bool              `json:"swelling"`
	AbnormalDiscomfort bool              `json:"abnormal_discomfort"`
	MedicationTaken    bool              `json:"medication_taken"`
	History            []CheckInSnapshot `json:"history,omitempty"`
}

// Result is a classification outcome. Score is 0-100 where higher means
// worse. Assessment is a short human-readable summary of what drove the
// score.
type Result struct {
	Score      int    `json:"score"`
	Status     string `json:"status"`
	Assessment string `json:"assessment"`
}

// Classifier scores a check-in.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}

// Config holds the score thresholds that map a score onto a status.
type Config struct {
	HighRiskThreshold   int
	MonitoringThreshold int
}

// DefaultConfig returns the standard score bands.
func DefaultConfig() Config {
	return Config{
		HighRiskThreshold:   70,
		MonitoringThreshold: 40,
	}
}

// RuleClassifier is the built-in additive scorer. It is deterministic and
// never fails, which makes it the fallback for the remote scorer.
type RuleClassifier struct {
	cfg Config
}

// NewRuleClassifier constructs a RuleClassifier with the given bands.
func NewRuleClassifier(cfg Config) *RuleClassifier {
	if cfg.HighRiskThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &RuleClassifier{cfg: cfg}
}

// Classify scores the check-in additively, clamps to [0,100], and applies
// the status floors: danger flags force High Risk, severe pain or two
// consecutive missed medication doses force at least Needs Monitoring.
func (rc *RuleClassifier) Classify(_ context.Context, in Input) (Result, error) {
	score := 0
	var factors []string

	score += in.Pain * 6
	if in.Pain >= 8 {
		factors = append(factors, fmt.Sprintf("severe pain (%d/10)", in.Pain))
	} else if in.Pain >= 5 {
		factors = append(factors, fmt.Sprintf("moderate pain (%d/10)", in.Pain))
	}

	if in.Fever {
		score += 25
		factors = append(factors, "fever")
	}
	if in.Bleeding {
		score += 30
		factors = append(factors, "bleeding")
	}
	if in.BreathingIssues {
		score += 30
		factors = append(factors, "breathing issues")
	}
	if in.InfectionSigns {
		score += 20
		factors = append(factors, "signs of infection")
	}
	if in.Swelling {
		score += 10
		factors = append(factors, "swelling")
	}
	if in.AbnormalDiscomfort {
		score += 10
		factors = append(factors, "abnormal discomfort")
	}

	switch in.Mobility {
	case MobilityLimited:
		score += 10
		factors = append(factors, "limited mobility")
	case MobilityBedridden:
		score += 25
		factors = append(factors, "bedridden")
	}

	missedTwice := false
	if !in.MedicationTaken {
		score += 15
		factors = append(factors, "medication missed")
		if len(in.History) > 0 && !in.History[0].MedicationTaken {
			score += 10
			missedTwice = true
			factors = append(factors, "medication missed twice in a row")
		}
	}

	if len(in.History) > 0 && in.Pain-in.History[0].Pain >= 3 {
		score += 5
		factors = append(factors, "pain rising sharply")
	}

	score = Clamp(score)

	status := rc.statusFor(score)

	// Danger flags always mean High Risk regardless of the score band.
	if in.Fever || in.Bleeding || in.BreathingIssues {
		status = StatusHighRisk
	}

	// Severe pain and repeated missed medication never read as Stable.
	if (in.Pain >= 8 || missedTwice) && Severity(status) < Severity(StatusNeedsMonitoring) {
		status = StatusNeedsMonitoring
	}

	return Result{
		Score:      score,
		Status:     status,
		Assessment: buildAssessment(status, factors),
	}, nil
}

func (rc *RuleClassifier) statusFor(score int) string {
	switch {
	case score >= rc.cfg.HighRiskThreshold:
		return StatusHighRisk
	case score >= rc.cfg.MonitoringThreshold:
		return StatusNeedsMonitoring
	default:
		return StatusStable
	}
}

func buildAssessment(status string, factors []string) string {
	if len(factors) == 0 {
		return "No concerning symptoms reported; recovery on track."
	}
	return fmt.Sprintf("Classified %s due to: %s.", status, strings.Join(factors, ", "))
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// FallbackClassifier tries a primary classifier and falls back to a
// secondary when the primary fails. The built-in rules back the remote
// scorer so classification always produces a result.
type FallbackClassifier struct {
	primary  Classifier
	fallback Classifier
}

// WithFallback wraps primary so that any error from it is absorbed by
// consulting fallback instead.
func WithFallback(primary, fallback Classifier) *FallbackClassifier {
	return &FallbackClassifier{primary: primary, fallback: fallback}
}

// Classify consults the primary classifier and, on error, the fallback.
func (f *FallbackClassifier) Classify(ctx context.Context, in Input) (Result, error) {
	res, err := f.primary.Classify(ctx, in)
	if err == nil {
		return res, nil
	}
	return f.fallback.Classify(ctx, in)
}
