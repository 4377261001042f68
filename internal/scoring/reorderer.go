// Package scoring provides deterministic optimization scoring for
// personalized content queues.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

const (
	// engagementBoost is added when the session trend is clearly positive
	// and subtracted when it is clearly negative.
	engagementBoost = 0.10
	// typePreferenceWeight scales the content-type preference adjustment.
	typePreferenceWeight = 0.20
	// energyAdjustment is applied for high (plus) or low (minus) energy.
	energyAdjustment = 0.05
	// improvementCap bounds the expected improvement estimate.
	improvementCap = 0.5
	// confidenceInteractionRef is the interaction count at which the
	// interaction-based confidence component saturates.
	confidenceInteractionRef = 10.0
	// confidenceDurationRefMinutes is the session duration at which the
	// duration-based confidence component saturates.
	confidenceDurationRefMinutes = 10.0
)

// ScoreComponents is the breakdown of one card's optimization score.
// Useful for debugging and explaining reorderings to users.
type ScoreComponents struct {
	RelevancePrior float64 `json:"relevance_prior"`
	EngagementAdj  float64 `json:"engagement_adj"`
	TypePreference float64 `json:"type_preference"`
	TypeAdj        float64 `json:"type_adj"`
	EnergyAdj      float64 `json:"energy_adj"`
	FinalScore     float64 `json:"final_score"`
}

// Reorderer computes per-card optimization scores and deterministic
// reorderings. It is stateless: Reorder is a pure function of its inputs.
type Reorderer struct{}

// NewReorderer creates a new reorderer.
func NewReorderer() *Reorderer {
	return &Reorderer{}
}

// ScoreCard computes the optimization score for a single card against a
// session snapshot.
//
// The scoring formula:
//
//	FinalScore = clamp01(RelevancePrior + EngagementAdj + TypeAdj + EnergyAdj)
//
// Where:
//   - EngagementAdj = +0.10 when engagementScore > 0.5, -0.10 when < 0.3
//   - TypeAdj = 0.20 × (contentTypePreference − 0.5), preference being the
//     positive fraction of this session's interactions with the same card type
//   - EnergyAdj = ±0.05 for high/low inferred energy
func (r *Reorderer) ScoreCard(card models.PersonalizedCard, sess models.SessionContext) ScoreComponents {
	c := ScoreComponents{RelevancePrior: card.RelevanceScore}

	engagement := sess.SessionMetrics.EngagementScore
	switch {
	case engagement > 0.5:
		c.EngagementAdj = engagementBoost
	case engagement < 0.3:
		c.EngagementAdj = -engagementBoost
	}

	c.TypePreference = contentTypePreference(sess.Interactions, card.Type)
	c.TypeAdj = typePreferenceWeight * (c.TypePreference - 0.5)

	switch sess.UserState.EnergyLevel {
	case models.EnergyHigh:
		c.EnergyAdj = energyAdjustment
	case models.EnergyLow:
		c.EnergyAdj = -energyAdjustment
	}

	c.FinalScore = clamp01(c.RelevancePrior + c.EngagementAdj + c.TypeAdj + c.EnergyAdj)
	return c
}

// Reorder scores every candidate and returns them sorted by descending
// optimization score. The sort is stable: ties preserve the original
// relative order. Reasons are emitted only for cards whose position changed.
//
// An empty candidate list degrades to the input order with zero improvement
// and zero confidence; it is not an error.
func (r *Reorderer) Reorder(sess models.SessionContext, candidates []models.PersonalizedCard) models.ReorderResult {
	if len(candidates) == 0 {
		return models.ReorderResult{Cards: candidates}
	}

	type scoredCard struct {
		card     models.PersonalizedCard
		oldIndex int
	}

	scored := make([]scoredCard, len(candidates))
	for i, card := range candidates {
		comp := r.ScoreCard(card, sess)
		card.OptimizationScore = comp.FinalScore
		card.Rationale = fmt.Sprintf("relevance %.2f, engagement %+.2f, type %+.2f, energy %+.2f",
			comp.RelevancePrior, comp.EngagementAdj, comp.TypeAdj, comp.EnergyAdj)
		scored[i] = scoredCard{card: card, oldIndex: i}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].card.OptimizationScore > scored[j].card.OptimizationScore
	})

	result := models.ReorderResult{
		Cards: make([]models.PersonalizedCard, len(scored)),
	}
	for newIndex, sc := range scored {
		result.Cards[newIndex] = sc.card
		if sc.oldIndex != newIndex {
			result.Reasons = append(result.Reasons, models.ReorderReason{
				CardID:   sc.card.ID,
				OldIndex: sc.oldIndex,
				NewIndex: newIndex,
				Score:    sc.card.OptimizationScore,
			})
		}
	}

	result.ExpectedImprovement = expectedImprovement(sess, len(candidates), len(result.Cards))
	result.Confidence = sessionConfidence(sess)
	return result
}

// contentTypePreference is the fraction of this session's interactions with
// the given card type that were positive; 0.5 with no data.
func contentTypePreference(interactions []models.UserInteraction, cardType models.CardType) float64 {
	total := 0
	positive := 0
	for _, in := range interactions {
		if in.CardType != cardType {
			continue
		}
		total++
		if in.Action.IsPositive() {
			positive++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(positive) / float64(total)
}

// expectedImprovement estimates the engagement gain from the reordering:
// min(0.3 × trend + 0.05 × |len(original) − len(optimized)|, 0.5), where the
// trend is the engagement score's distance above neutral.
func expectedImprovement(sess models.SessionContext, originalLen, optimizedLen int) float64 {
	trend := sess.SessionMetrics.EngagementScore - 0.5
	if trend < 0 {
		trend = 0
	}
	improvement := 0.3*trend + 0.05*math.Abs(float64(originalLen-optimizedLen))
	return math.Min(improvement, improvementCap)
}

// sessionConfidence averages how much evidence the session has accumulated:
// the interaction-count ratio and the duration ratio against a 10-minute
// reference, each capped at 1.
func sessionConfidence(sess models.SessionContext) float64 {
	interactionRatio := math.Min(float64(sess.SessionMetrics.TotalInteractions)/confidenceInteractionRef, 1)
	durationRatio := math.Min(sess.CurrentTime.Sub(sess.StartTime).Minutes()/confidenceDurationRefMinutes, 1)
	if durationRatio < 0 {
		durationRatio = 0
	}
	return (interactionRatio + durationRatio) / 2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
