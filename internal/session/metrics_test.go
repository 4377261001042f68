package session

import (
	"testing"
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/stretchr/testify/suite"
)

// MetricsSuite is a test suite for derived session metrics.
type MetricsSuite struct {
	suite.Suite
	start time.Time
}

func (s *MetricsSuite) SetupTest() {
	s.start = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsSuite))
}

func (s *MetricsSuite) interaction(action models.ActionType, timeSpentMs int64, offset time.Duration) models.UserInteraction {
	return models.UserInteraction{
		ID:        "i",
		UserID:    "user-1",
		CardID:    "card-1",
		CardType:  models.CardTypeLesson,
		Action:    action,
		Timestamp: s.start.Add(offset),
		Context:   models.InteractionContext{TimeSpentMs: timeSpentMs},
	}
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *MetricsSuite) TestEngagementScore_RisingTrend() {
	// Three negatives followed by three positives: strong upward trend
	interactions := []models.UserInteraction{
		s.interaction(models.ActionSwipeLeft, 0, 0),
		s.interaction(models.ActionSwipeLeft, 0, time.Minute),
		s.interaction(models.ActionView, 0, 2*time.Minute),
		s.interaction(models.ActionSwipeRight, 0, 3*time.Minute),
		s.interaction(models.ActionSave, 0, 4*time.Minute),
		s.interaction(models.ActionComplete, 0, 5*time.Minute),
	}

	// recent fraction 1.0, preceding fraction 0.0 -> 1.0 + 0.5 clamped to 1.0
	s.InDelta(1.0, EngagementScore(interactions), 0.001)
}

func (s *MetricsSuite) TestEngagementScore_FallingTrend() {
	interactions := []models.UserInteraction{
		s.interaction(models.ActionSwipeRight, 0, 0),
		s.interaction(models.ActionSave, 0, time.Minute),
		s.interaction(models.ActionShare, 0, 2*time.Minute),
		s.interaction(models.ActionSwipeLeft, 0, 3*time.Minute),
		s.interaction(models.ActionSwipeLeft, 0, 4*time.Minute),
		s.interaction(models.ActionView, 0, 5*time.Minute),
	}

	// recent 0.0 vs preceding 1.0 -> -1.0 + 0.5 clamped to 0.0
	s.InDelta(0.0, EngagementScore(interactions), 0.001)
}

func (s *MetricsSuite) TestEngagementScore_TrendMonotonicity() {
	// Identical prefixes; session B ends on three positives, session A on
	// three negatives. B must strictly exceed A.
	prefix := []models.UserInteraction{
		s.interaction(models.ActionView, 0, 0),
		s.interaction(models.ActionSwipeRight, 0, time.Minute),
		s.interaction(models.ActionView, 0, 2*time.Minute),
	}

	a := append(append([]models.UserInteraction{}, prefix...),
		s.interaction(models.ActionSwipeLeft, 0, 3*time.Minute),
		s.interaction(models.ActionSwipeLeft, 0, 4*time.Minute),
		s.interaction(models.ActionView, 0, 5*time.Minute),
	)
	b := append(append([]models.UserInteraction{}, prefix...),
		s.interaction(models.ActionSwipeRight, 0, 3*time.Minute),
		s.interaction(models.ActionSave, 0, 4*time.Minute),
		s.interaction(models.ActionComplete, 0, 5*time.Minute),
	)

	s.Greater(EngagementScore(b), EngagementScore(a))
}

func (s *MetricsSuite) TestAverageTimePerCard() {
	interactions := []models.UserInteraction{
		s.interaction(models.ActionView, 4000, 0),
		s.interaction(models.ActionSwipeRight, 0, time.Minute), // no dwell time, excluded
		s.interaction(models.ActionPlay, 8000, 2*time.Minute),
	}

	m := ComputeMetrics(interactions, s.start, s.start.Add(2*time.Minute))
	s.InDelta(6000, m.AverageTimePerCard, 0.001)
}

func (s *MetricsSuite) TestInteractionRate() {
	interactions := []models.UserInteraction{
		s.interaction(models.ActionView, 0, 0),
		s.interaction(models.ActionView, 0, time.Minute),
		s.interaction(models.ActionView, 0, 2*time.Minute),
		s.interaction(models.ActionView, 0, 4*time.Minute),
	}

	m := ComputeMetrics(interactions, s.start, s.start.Add(4*time.Minute))
	s.InDelta(1.0, m.InteractionRate, 0.001)
}

// =============================================================================
// EDGE CASES - Empty and degenerate inputs
// =============================================================================

func (s *MetricsSuite) TestColdSession() {
	// New session, one view with no dwell time: engagement defaults to the
	// neutral 0.5 and average time per card stays 0.
	interactions := []models.UserInteraction{
		s.interaction(models.ActionView, 0, 0),
	}

	m := ComputeMetrics(interactions, s.start, s.start)
	s.InDelta(0.5, m.EngagementScore, 0.001)
	s.Zero(m.AverageTimePerCard)
	s.Zero(m.InteractionRate, "zero duration yields zero rate")
	s.Equal(1, m.TotalInteractions)
	s.Equal(0, m.PositiveInteractions)
}

func (s *MetricsSuite) TestEmptySession() {
	m := ComputeMetrics(nil, s.start, s.start)
	s.InDelta(0.5, m.EngagementScore, 0.001)
	s.Zero(m.AverageTimePerCard)
	s.Zero(m.InteractionRate)
	s.Zero(m.TotalInteractions)
}

func (s *MetricsSuite) TestEngagementScore_ShortWindow() {
	// Fewer than 3 interactions: compare against the available window.
	// One positive with no preceding window maxes the trend.
	interactions := []models.UserInteraction{
		s.interaction(models.ActionSave, 0, 0),
	}
	s.InDelta(1.0, EngagementScore(interactions), 0.001)
}

func (s *MetricsSuite) TestDeriveUserState_Defaults() {
	state := DeriveUserState(nil, models.SessionMetrics{}, s.start)
	s.Equal(models.EnergyMedium, state.EnergyLevel)
	s.Equal("neutral", state.Mood)
}

func (s *MetricsSuite) TestDeriveUserState_LateNightLowEnergy() {
	lateNight := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	state := DeriveUserState(nil, models.SessionMetrics{}, lateNight)
	s.Equal(models.EnergyLow, state.EnergyLevel)
}

func (s *MetricsSuite) TestDeriveUserState_PositiveMood() {
	metrics := models.SessionMetrics{TotalInteractions: 10, PositiveInteractions: 8}
	state := DeriveUserState(nil, metrics, s.start)
	s.Equal("positive", state.Mood)
}
