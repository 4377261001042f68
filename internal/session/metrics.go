package session

import (
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// trendWindow is the number of trailing interactions compared against the
// preceding window when computing the engagement trend.
const trendWindow = 3

// ComputeMetrics derives session metrics from the interaction sequence.
// It is a total, pure function: empty sequences and zero durations produce
// neutral defaults, never panics.
func ComputeMetrics(interactions []models.UserInteraction, start, current time.Time) models.SessionMetrics {
	m := models.SessionMetrics{
		TotalInteractions: len(interactions),
	}
	for _, in := range interactions {
		if in.Action.IsPositive() {
			m.PositiveInteractions++
		}
	}
	m.EngagementScore = EngagementScore(interactions)
	m.AverageTimePerCard = averageTimePerCard(interactions)
	m.InteractionRate = interactionRate(len(interactions), start, current)
	return m
}

// EngagementScore measures the trend of recent positive engagement, not the
// absolute rate. The positive fraction over the last 3 interactions is
// compared against the fraction over the preceding 3 (shorter windows when
// fewer interactions exist), offset by 0.5 and clamped to [0,1].
func EngagementScore(interactions []models.UserInteraction) float64 {
	n := len(interactions)
	if n == 0 {
		return 0.5
	}

	recentStart := n - trendWindow
	if recentStart < 0 {
		recentStart = 0
	}
	recent := interactions[recentStart:]

	prevStart := recentStart - trendWindow
	if prevStart < 0 {
		prevStart = 0
	}
	previous := interactions[prevStart:recentStart]

	score := models.PositiveFraction(recent) - models.PositiveFraction(previous) + 0.5
	return clamp01(score)
}

// averageTimePerCard is the mean of timeSpentMs over interactions that
// actually report time spent; 0 if none qualify.
func averageTimePerCard(interactions []models.UserInteraction) float64 {
	var total int64
	count := 0
	for _, in := range interactions {
		if in.Context.TimeSpentMs > 0 {
			total += in.Context.TimeSpentMs
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// interactionRate is interactions per minute of session duration;
// 0 when the duration is 0.
func interactionRate(count int, start, current time.Time) float64 {
	minutes := current.Sub(start).Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(count) / minutes
}

// DeriveUserState infers low-confidence user-state heuristics from the
// interaction sequence and the session clock.
func DeriveUserState(interactions []models.UserInteraction, metrics models.SessionMetrics, current time.Time) models.UserState {
	state := models.UserState{
		EnergyLevel:          models.EnergyMedium,
		FocusLevel:           "medium",
		Mood:                 "neutral",
		TimeAvailableMinutes: 15,
	}

	// Energy: morning and evening hours plus a brisk interaction rate read
	// as high energy; late night or a sluggish rate as low.
	hour := current.Hour()
	switch {
	case hour >= 22 || hour < 6:
		state.EnergyLevel = models.EnergyLow
	case metrics.InteractionRate > 2.0:
		state.EnergyLevel = models.EnergyHigh
	case metrics.InteractionRate > 0 && metrics.InteractionRate < 0.5:
		state.EnergyLevel = models.EnergyLow
	}

	// Focus: long dwell time per card reads as focused consumption,
	// near-instant swiping as skimming.
	switch {
	case metrics.AverageTimePerCard > 30000:
		state.FocusLevel = "high"
	case metrics.AverageTimePerCard > 0 && metrics.AverageTimePerCard < 5000:
		state.FocusLevel = "low"
	}

	// Mood from the positive-interaction ratio over the whole session.
	if metrics.TotalInteractions > 0 {
		ratio := float64(metrics.PositiveInteractions) / float64(metrics.TotalInteractions)
		switch {
		case ratio > 0.6:
			state.Mood = "positive"
		case ratio < 0.3:
			state.Mood = "negative"
		}
	}

	if len(interactions) > 0 {
		// Rough time budget: assume the session has roughly as much runway
		// left as it has already used, bounded to a sane range.
		elapsed := int(current.Sub(interactions[0].Timestamp).Minutes())
		if elapsed < 5 {
			elapsed = 5
		}
		if elapsed > 60 {
			elapsed = 60
		}
		state.TimeAvailableMinutes = elapsed
	}

	return state
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
