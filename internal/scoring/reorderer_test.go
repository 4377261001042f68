package scoring

import (
	"testing"
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/stretchr/testify/suite"
)

// ReordererSuite is a test suite for the reorderer.
type ReordererSuite struct {
	suite.Suite
	reorderer *Reorderer
	start     time.Time
}

func (s *ReordererSuite) SetupTest() {
	s.reorderer = NewReorderer()
	s.start = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
}

func TestReordererSuite(t *testing.T) {
	suite.Run(t, new(ReordererSuite))
}

func (s *ReordererSuite) sessionWithEngagement(score float64) models.SessionContext {
	return models.SessionContext{
		SessionID:   "sess-1",
		UserID:      "user-1",
		StartTime:   s.start,
		CurrentTime: s.start.Add(12 * time.Minute),
		SessionMetrics: models.SessionMetrics{
			TotalInteractions: 12,
			EngagementScore:   score,
		},
		UserState: models.UserState{EnergyLevel: models.EnergyMedium},
	}
}

func cards(relevances ...float64) []models.PersonalizedCard {
	out := make([]models.PersonalizedCard, len(relevances))
	for i, r := range relevances {
		out[i] = models.PersonalizedCard{
			ID:             string(rune('a' + i)),
			Type:           models.CardTypeNews,
			RelevanceScore: r,
		}
	}
	return out
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *ReordererSuite) TestScoreCard_EngagementBoost() {
	sess := s.sessionWithEngagement(0.8)
	comp := s.reorderer.ScoreCard(models.PersonalizedCard{Type: models.CardTypeNews, RelevanceScore: 0.5}, sess)

	s.InDelta(0.10, comp.EngagementAdj, 0.001)
	// No type data -> neutral preference, zero type adjustment
	s.InDelta(0.5, comp.TypePreference, 0.001)
	s.InDelta(0.0, comp.TypeAdj, 0.001)
	s.InDelta(0.60, comp.FinalScore, 0.001)
}

func (s *ReordererSuite) TestScoreCard_EngagementPenalty() {
	sess := s.sessionWithEngagement(0.2)
	comp := s.reorderer.ScoreCard(models.PersonalizedCard{Type: models.CardTypeNews, RelevanceScore: 0.5}, sess)
	s.InDelta(-0.10, comp.EngagementAdj, 0.001)
	s.InDelta(0.40, comp.FinalScore, 0.001)
}

func (s *ReordererSuite) TestScoreCard_TypePreference() {
	sess := s.sessionWithEngagement(0.4)
	// Three lesson interactions, all positive -> preference 1.0 -> +0.10
	for i := 0; i < 3; i++ {
		sess.Interactions = append(sess.Interactions, models.UserInteraction{
			CardType: models.CardTypeLesson,
			Action:   models.ActionSwipeRight,
		})
	}

	comp := s.reorderer.ScoreCard(models.PersonalizedCard{Type: models.CardTypeLesson, RelevanceScore: 0.5}, sess)
	s.InDelta(1.0, comp.TypePreference, 0.001)
	s.InDelta(0.10, comp.TypeAdj, 0.001)
}

func (s *ReordererSuite) TestScoreCard_EnergyAdjustment() {
	sess := s.sessionWithEngagement(0.4)
	card := models.PersonalizedCard{Type: models.CardTypeNews, RelevanceScore: 0.5}

	sess.UserState.EnergyLevel = models.EnergyHigh
	s.InDelta(0.05, s.reorderer.ScoreCard(card, sess).EnergyAdj, 0.001)

	sess.UserState.EnergyLevel = models.EnergyLow
	s.InDelta(-0.05, s.reorderer.ScoreCard(card, sess).EnergyAdj, 0.001)
}

func (s *ReordererSuite) TestReorder_StrongEngagement() {
	// Session with engagement 0.8; candidates with relevance [0.5, 0.9, 0.4].
	// The highest-relevance card must end up first; reasons only for cards
	// whose rank actually changed.
	sess := s.sessionWithEngagement(0.8)
	result := s.reorderer.Reorder(sess, cards(0.5, 0.9, 0.4))

	s.Equal("b", result.Cards[0].ID, "highest relevance card first")
	s.Equal("a", result.Cards[1].ID)
	s.Equal("c", result.Cards[2].ID)

	moved := map[string]bool{}
	for _, reason := range result.Reasons {
		moved[reason.CardID] = true
		s.NotEqual(reason.OldIndex, reason.NewIndex)
	}
	s.True(moved["a"])
	s.True(moved["b"])
	s.False(moved["c"], "card c kept its position")

	s.Positive(result.ExpectedImprovement)
	s.Positive(result.Confidence)
}

func (s *ReordererSuite) TestReorder_Deterministic() {
	sess := s.sessionWithEngagement(0.6)
	sess.Interactions = []models.UserInteraction{
		{CardType: models.CardTypeStock, Action: models.ActionSave},
		{CardType: models.CardTypeCrypto, Action: models.ActionSwipeLeft},
	}
	candidates := []models.PersonalizedCard{
		{ID: "s1", Type: models.CardTypeStock, RelevanceScore: 0.6},
		{ID: "c1", Type: models.CardTypeCrypto, RelevanceScore: 0.6},
		{ID: "n1", Type: models.CardTypeNews, RelevanceScore: 0.7},
	}

	first := s.reorderer.Reorder(sess, candidates)
	second := s.reorderer.Reorder(sess, candidates)

	s.Equal(first.Cards, second.Cards)
	s.Equal(first.Reasons, second.Reasons)
	s.Equal(first.ExpectedImprovement, second.ExpectedImprovement)
	s.Equal(first.Confidence, second.Confidence)
}

func (s *ReordererSuite) TestReorder_StableSort() {
	// Equal computed scores retain their relative input order
	sess := s.sessionWithEngagement(0.4)
	result := s.reorderer.Reorder(sess, cards(0.5, 0.5, 0.5))

	s.Equal("a", result.Cards[0].ID)
	s.Equal("b", result.Cards[1].ID)
	s.Equal("c", result.Cards[2].ID)
	s.Empty(result.Reasons, "nothing moved")
}

// =============================================================================
// EDGE CASES - Degraded inputs
// =============================================================================

func (s *ReordererSuite) TestReorder_EmptyCandidates() {
	sess := s.sessionWithEngagement(0.9)
	result := s.reorderer.Reorder(sess, nil)

	s.Empty(result.Cards)
	s.Empty(result.Reasons)
	s.Zero(result.ExpectedImprovement)
	s.Zero(result.Confidence)
}

func (s *ReordererSuite) TestReorder_ScoresClamped() {
	sess := s.sessionWithEngagement(0.9)
	sess.UserState.EnergyLevel = models.EnergyHigh
	result := s.reorderer.Reorder(sess, cards(0.99))
	s.LessOrEqual(result.Cards[0].OptimizationScore, 1.0)

	sess = s.sessionWithEngagement(0.1)
	sess.UserState.EnergyLevel = models.EnergyLow
	result = s.reorderer.Reorder(sess, cards(0.01))
	s.GreaterOrEqual(result.Cards[0].OptimizationScore, 0.0)
}

func (s *ReordererSuite) TestExpectedImprovement_Capped() {
	sess := s.sessionWithEngagement(1.0)
	result := s.reorderer.Reorder(sess, cards(0.1, 0.9))
	s.LessOrEqual(result.ExpectedImprovement, 0.5)
}
