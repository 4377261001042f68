package scoring

import (
	"math"
	"strings"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

const (
	// recentRateWindow is how many trailing interactions feed the recent
	// engagement rate.
	recentRateWindow = 10

	engagementRateDelta = 0.05
	satisfactionDelta   = 0.03
	diversityDelta      = 0.02
)

// StrengthAdjustment is the outcome of one personalization-strength pass.
// NewStrength is the new absolute value, not a delta.
type StrengthAdjustment struct {
	NewStrength    float64 `json:"new_strength"`
	Reason         string  `json:"reason"`
	ExpectedImpact float64 `json:"expected_impact"`
	Confidence     float64 `json:"confidence"`
}

// AdjustStrength recomputes a user's personalization strength from the
// session's observed response to the current strength. Deltas are fixed and
// purely proportional, so repeated calls cannot oscillate beyond them.
//
// Deltas, summed then clamped to [0,1]:
//   - recent engagement rate > 0.7: +0.05; < 0.3: -0.05
//   - satisfaction > 0.8: +0.03; < 0.4: -0.03
//   - content-type diversity < 0.3: -0.02 (low variety pulls strength down
//     so selection drifts back toward broader content)
func AdjustStrength(current float64, sess models.SessionContext) StrengthAdjustment {
	current = clamp01(current)

	total := len(sess.Interactions)
	if total == 0 {
		return StrengthAdjustment{
			NewStrength: current,
			Reason:      "no interactions observed, strength unchanged",
		}
	}

	delta := 0.0
	var reasons []string

	rate := recentEngagementRate(sess.Interactions)
	switch {
	case rate > 0.7:
		delta += engagementRateDelta
		reasons = append(reasons, "high recent engagement")
	case rate < 0.3:
		delta -= engagementRateDelta
		reasons = append(reasons, "low recent engagement")
	}

	satisfaction := models.PositiveFraction(sess.Interactions)
	switch {
	case satisfaction > 0.8:
		delta += satisfactionDelta
		reasons = append(reasons, "high satisfaction")
	case satisfaction < 0.4:
		delta -= satisfactionDelta
		reasons = append(reasons, "low satisfaction")
	}

	if contentTypeDiversity(sess.Interactions) < 0.3 {
		delta -= diversityDelta
		reasons = append(reasons, "low content diversity")
	}

	newStrength := clamp01(current + delta)
	reason := "engagement within normal bands, strength unchanged"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}

	return StrengthAdjustment{
		NewStrength:    newStrength,
		Reason:         reason,
		ExpectedImpact: math.Abs(newStrength - current),
		Confidence:     math.Min(float64(total)/confidenceInteractionRef, 1),
	}
}

// recentEngagementRate is the positive fraction over the trailing window.
func recentEngagementRate(interactions []models.UserInteraction) float64 {
	start := len(interactions) - recentRateWindow
	if start < 0 {
		start = 0
	}
	return models.PositiveFraction(interactions[start:])
}

// contentTypeDiversity is the fraction of the card-type universe this
// session has touched.
func contentTypeDiversity(interactions []models.UserInteraction) float64 {
	seen := make(map[models.CardType]bool)
	for _, in := range interactions {
		seen[in.CardType] = true
	}
	return float64(len(seen)) / float64(len(models.AllCardTypes))
}
