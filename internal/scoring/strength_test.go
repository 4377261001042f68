package scoring

import (
	"testing"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionOf(actions ...models.ActionType) models.SessionContext {
	sess := models.SessionContext{SessionID: "sess-1", UserID: "user-1"}
	for _, a := range actions {
		sess.Interactions = append(sess.Interactions, models.UserInteraction{
			CardType: models.CardTypeLesson,
			Action:   a,
		})
	}
	return sess
}

func TestAdjustStrength_HighEngagementRaises(t *testing.T) {
	sess := sessionOf(
		models.ActionSwipeRight, models.ActionSave, models.ActionShare,
		models.ActionComplete, models.ActionSwipeRight,
	)

	adj := AdjustStrength(0.5, sess)

	// rate 1.0 > 0.7: +0.05; satisfaction 1.0 > 0.8: +0.03;
	// diversity 1/6 < 0.3: -0.02
	assert.InDelta(t, 0.56, adj.NewStrength, 0.001)
	assert.Contains(t, adj.Reason, "high recent engagement")
	assert.InDelta(t, 0.06, adj.ExpectedImpact, 0.001)
	assert.InDelta(t, 0.5, adj.Confidence, 0.001)
}

func TestAdjustStrength_LowEngagementLowers(t *testing.T) {
	sess := sessionOf(
		models.ActionSwipeLeft, models.ActionSwipeLeft, models.ActionView,
		models.ActionSwipeLeft, models.ActionView,
	)

	adj := AdjustStrength(0.5, sess)

	// rate 0.0 < 0.3: -0.05; satisfaction 0.0 < 0.4: -0.03; diversity: -0.02
	assert.InDelta(t, 0.40, adj.NewStrength, 0.001)
	assert.Contains(t, adj.Reason, "low recent engagement")
}

func TestAdjustStrength_NoDataUnchanged(t *testing.T) {
	adj := AdjustStrength(0.7, models.SessionContext{})
	assert.InDelta(t, 0.7, adj.NewStrength, 0.001)
	assert.Zero(t, adj.ExpectedImpact)
	assert.Zero(t, adj.Confidence)
}

func TestAdjustStrength_ClampProperty(t *testing.T) {
	// For any starting strength and any sequence of adjustments, the result
	// stays inside [0,1].
	negative := sessionOf(
		models.ActionSwipeLeft, models.ActionSwipeLeft, models.ActionSwipeLeft,
		models.ActionView, models.ActionView,
	)
	positive := sessionOf(
		models.ActionSwipeRight, models.ActionSave, models.ActionComplete,
		models.ActionShare, models.ActionSwipeRight,
	)

	for _, start := range []float64{-0.5, 0.0, 0.02, 0.5, 0.99, 1.0, 1.7} {
		strength := start
		for i := 0; i < 50; i++ {
			sess := negative
			if i%2 == 0 {
				sess = positive
			}
			adj := AdjustStrength(strength, sess)
			require.GreaterOrEqual(t, adj.NewStrength, 0.0)
			require.LessOrEqual(t, adj.NewStrength, 1.0)
			strength = adj.NewStrength
		}
	}
}

func TestAdjustStrength_Deterministic(t *testing.T) {
	sess := sessionOf(models.ActionSwipeRight, models.ActionView, models.ActionSave)
	first := AdjustStrength(0.5, sess)
	second := AdjustStrength(0.5, sess)
	assert.Equal(t, first, second)
}
