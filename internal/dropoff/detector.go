// Package dropoff detects engagement decline within active sessions and
// selects intervention strategies.
package dropoff

import (
	"math"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// Severity buckets an engagement decline.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Contributing factor tags.
const (
	FactorDecliningEngagement = "declining_engagement"
	FactorSlowInteractionRate = "slow_interaction_rate"
	FactorLongTimePerCard     = "long_time_per_card"
	FactorNegativeStreak      = "negative_streak"
)

// interventionCatalog maps each factor to its ordered intervention
// strategies. The catalog is fixed; factor order decides output order.
var interventionCatalog = map[string][]string{
	FactorDecliningEngagement: {"switch_to_easier_content", "inject_high_affinity_card"},
	FactorSlowInteractionRate: {"reduce_content_length", "surface_quick_win_challenge"},
	FactorLongTimePerCard:     {"reduce_content_length"},
	FactorNegativeStreak:      {"switch_content_type", "inject_high_affinity_card"},
}

// factorOrder fixes the evaluation and output order of factors.
var factorOrder = []string{
	FactorDecliningEngagement,
	FactorNegativeStreak,
	FactorSlowInteractionRate,
	FactorLongTimePerCard,
}

// Config holds the detection thresholds. Severity banding is configurable
// but must stay monotonic in the magnitude of decline.
type Config struct {
	// NeutralEngagement is the score a healthy session hovers around;
	// decline is measured as distance below it.
	NeutralEngagement float64 `json:"neutral_engagement"`
	// DetectDecline is the minimum decline that counts as a dropoff.
	DetectDecline float64 `json:"detect_decline"`
	// MediumDecline and HighDecline are the lower bounds of the deeper
	// severity bands.
	MediumDecline float64 `json:"medium_decline"`
	HighDecline   float64 `json:"high_decline"`

	// SlowRateThreshold is the interactions-per-minute floor below which
	// the session reads as stalling.
	SlowRateThreshold float64 `json:"slow_rate_threshold"`
	// LongDwellMsThreshold is the average dwell time above which cards
	// read as too heavy.
	LongDwellMsThreshold float64 `json:"long_dwell_ms_threshold"`
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		NeutralEngagement:    0.5,
		DetectDecline:        0.1,
		MediumDecline:        0.2,
		HighDecline:          0.35,
		SlowRateThreshold:    0.5,
		LongDwellMsThreshold: 45000,
	}
}

// Result is the outcome of one detection pass.
type Result struct {
	Detected         bool     `json:"detected"`
	Severity         Severity `json:"severity"`
	Factors          []string `json:"factors,omitempty"`
	Interventions    []string `json:"interventions,omitempty"`
	ExpectedRecovery float64  `json:"expected_recovery"`
	Confidence       float64  `json:"confidence"`
}

// Detector inspects recent interaction velocity and positivity for
// engagement decline. Stateless; Detect is a pure function of the snapshot.
type Detector struct {
	config Config
}

// NewDetector creates a detector. A zero-value config falls back to defaults.
func NewDetector(config Config) *Detector {
	if config.NeutralEngagement <= 0 {
		config = DefaultConfig()
	}
	return &Detector{config: config}
}

// Detect flags engagement decline and selects interventions from the fixed
// catalog based on which factors contributed. Severity is monotonic in the
// magnitude of decline.
func (d *Detector) Detect(sess models.SessionContext) Result {
	m := sess.SessionMetrics

	decline := d.config.NeutralEngagement - m.EngagementScore
	if decline < 0 {
		decline = 0
	}

	result := Result{
		Severity:   d.severity(decline),
		Confidence: math.Min(float64(m.TotalInteractions)/10.0, 1),
	}
	if result.Severity == SeverityNone {
		return result
	}
	result.Detected = true

	contributing := map[string]bool{
		FactorDecliningEngagement: true, // decline is what got us here
		FactorSlowInteractionRate: m.InteractionRate > 0 && m.InteractionRate < d.config.SlowRateThreshold,
		FactorLongTimePerCard:     m.AverageTimePerCard > d.config.LongDwellMsThreshold,
		FactorNegativeStreak:      hasNegativeStreak(sess.Interactions),
	}

	seen := make(map[string]bool)
	for _, factor := range factorOrder {
		if !contributing[factor] {
			continue
		}
		result.Factors = append(result.Factors, factor)
		for _, strategy := range interventionCatalog[factor] {
			if seen[strategy] {
				continue
			}
			seen[strategy] = true
			result.Interventions = append(result.Interventions, strategy)
		}
	}

	// Deeper dips are harder to recover from.
	switch result.Severity {
	case SeverityLow:
		result.ExpectedRecovery = 0.45
	case SeverityMedium:
		result.ExpectedRecovery = 0.35
	default:
		result.ExpectedRecovery = 0.25
	}

	return result
}

// severity bands the decline. Bands come from configuration but the mapping
// is monotonic: a deeper decline never yields a lower severity.
func (d *Detector) severity(decline float64) Severity {
	switch {
	case decline < d.config.DetectDecline:
		return SeverityNone
	case decline < d.config.MediumDecline:
		return SeverityLow
	case decline < d.config.HighDecline:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// hasNegativeStreak reports whether the last three interactions were all
// non-positive.
func hasNegativeStreak(interactions []models.UserInteraction) bool {
	if len(interactions) < 3 {
		return false
	}
	for _, in := range interactions[len(interactions)-3:] {
		if in.Action.IsPositive() {
			return false
		}
	}
	return true
}
