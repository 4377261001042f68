package dropoff

import (
	"testing"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWith(m models.SessionMetrics, interactions ...models.UserInteraction) models.SessionContext {
	return models.SessionContext{
		SessionID:      "sess-1",
		SessionMetrics: m,
		Interactions:   interactions,
	}
}

// ============================================================================
// Detection and severity
// ============================================================================

func TestDetect_HealthySessionNotFlagged(t *testing.T) {
	d := NewDetector(DefaultConfig())

	result := d.Detect(sessionWith(models.SessionMetrics{
		EngagementScore:   0.55,
		InteractionRate:   2.0,
		TotalInteractions: 12,
	}))

	assert.False(t, result.Detected)
	assert.Equal(t, SeverityNone, result.Severity)
	assert.Empty(t, result.Factors)
	assert.Empty(t, result.Interventions)
}

func TestDetect_SeverityBands(t *testing.T) {
	d := NewDetector(DefaultConfig())

	cases := []struct {
		engagement float64
		want       Severity
	}{
		{0.45, SeverityNone},   // decline 0.05
		{0.35, SeverityLow},    // decline 0.15
		{0.25, SeverityMedium}, // decline 0.25
		{0.10, SeverityHigh},   // decline 0.40
		{0.00, SeverityHigh},   // decline 0.50
	}
	for _, tc := range cases {
		result := d.Detect(sessionWith(models.SessionMetrics{
			EngagementScore:   tc.engagement,
			InteractionRate:   1.0,
			TotalInteractions: 10,
		}))
		assert.Equal(t, tc.want, result.Severity, "engagement %.2f", tc.engagement)
	}
}

func TestDetect_SeverityMonotonicInDecline(t *testing.T) {
	d := NewDetector(DefaultConfig())

	order := map[Severity]int{
		SeverityNone:   0,
		SeverityLow:    1,
		SeverityMedium: 2,
		SeverityHigh:   3,
	}

	prev := -1
	for engagement := 0.6; engagement >= 0; engagement -= 0.05 {
		result := d.Detect(sessionWith(models.SessionMetrics{
			EngagementScore:   engagement,
			InteractionRate:   1.0,
			TotalInteractions: 10,
		}))
		rank := order[result.Severity]
		assert.GreaterOrEqual(t, rank, prev,
			"severity must never decrease as engagement falls (engagement %.2f)", engagement)
		prev = rank
	}
}

// ============================================================================
// Factors and interventions
// ============================================================================

func TestDetect_FactorsReflectMetrics(t *testing.T) {
	d := NewDetector(DefaultConfig())

	result := d.Detect(sessionWith(
		models.SessionMetrics{
			EngagementScore:    0.2,
			InteractionRate:    0.2,   // below slow-rate threshold
			AverageTimePerCard: 60000, // above long-dwell threshold
			TotalInteractions:  5,
		},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionView},
	))

	require.True(t, result.Detected)
	assert.Equal(t, []string{
		FactorDecliningEngagement,
		FactorNegativeStreak,
		FactorSlowInteractionRate,
		FactorLongTimePerCard,
	}, result.Factors)
}

func TestDetect_NegativeStreakNeedsThreeNonPositive(t *testing.T) {
	d := NewDetector(DefaultConfig())
	metrics := models.SessionMetrics{EngagementScore: 0.2, InteractionRate: 1.0, TotalInteractions: 3}

	// A save inside the last three breaks the streak.
	result := d.Detect(sessionWith(metrics,
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSave},
		models.UserInteraction{Action: models.ActionSwipeLeft},
	))
	assert.NotContains(t, result.Factors, FactorNegativeStreak)

	result = d.Detect(sessionWith(metrics,
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionView},
		models.UserInteraction{Action: models.ActionSwipeLeft},
	))
	assert.Contains(t, result.Factors, FactorNegativeStreak)
}

func TestDetect_InterventionsDeduplicated(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// declining_engagement and negative_streak share inject_high_affinity_card.
	result := d.Detect(sessionWith(
		models.SessionMetrics{EngagementScore: 0.1, InteractionRate: 1.0, TotalInteractions: 3},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSwipeLeft},
	))

	seen := make(map[string]int)
	for _, strategy := range result.Interventions {
		seen[strategy]++
	}
	for strategy, count := range seen {
		assert.Equal(t, 1, count, "intervention %s listed more than once", strategy)
	}
	assert.Contains(t, result.Interventions, "inject_high_affinity_card")
}

// ============================================================================
// Recovery and confidence
// ============================================================================

func TestDetect_RecoveryDropsWithSeverity(t *testing.T) {
	d := NewDetector(DefaultConfig())
	base := models.SessionMetrics{InteractionRate: 1.0, TotalInteractions: 10}

	low := base
	low.EngagementScore = 0.35
	medium := base
	medium.EngagementScore = 0.25
	high := base
	high.EngagementScore = 0.05

	lowRec := d.Detect(sessionWith(low)).ExpectedRecovery
	medRec := d.Detect(sessionWith(medium)).ExpectedRecovery
	highRec := d.Detect(sessionWith(high)).ExpectedRecovery

	assert.Greater(t, lowRec, medRec)
	assert.Greater(t, medRec, highRec)
}

func TestDetect_ConfidenceGrowsWithData(t *testing.T) {
	d := NewDetector(DefaultConfig())

	sparse := d.Detect(sessionWith(models.SessionMetrics{EngagementScore: 0.2, TotalInteractions: 2}))
	dense := d.Detect(sessionWith(models.SessionMetrics{EngagementScore: 0.2, TotalInteractions: 20}))

	assert.InDelta(t, 0.2, sparse.Confidence, 0.001)
	assert.InDelta(t, 1.0, dense.Confidence, 0.001)
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector(DefaultConfig())
	sess := sessionWith(
		models.SessionMetrics{EngagementScore: 0.15, InteractionRate: 0.3, TotalInteractions: 6},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSwipeLeft},
		models.UserInteraction{Action: models.ActionSwipeLeft},
	)

	first := d.Detect(sess)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Detect(sess))
	}
}
