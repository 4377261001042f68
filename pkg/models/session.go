package models

import "time"

// SessionMetrics are derived from a session's interaction sequence.
// They are a pure function of the sequence at call time and are never
// persisted independently of it.
type SessionMetrics struct {
	TotalInteractions    int     `json:"total_interactions"`
	PositiveInteractions int     `json:"positive_interactions"`
	AverageTimePerCard   float64 `json:"average_time_per_card_ms"`
	EngagementScore      float64 `json:"engagement_score"`
	InteractionRate      float64 `json:"interaction_rate"`
}

// EnergyLevel buckets a user's inferred energy.
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// UserState holds low-confidence heuristics about the user behind a session.
type UserState struct {
	EnergyLevel          EnergyLevel `json:"energy_level"`
	FocusLevel           string      `json:"focus_level"`
	Mood                 string      `json:"mood"`
	TimeAvailableMinutes int         `json:"time_available_minutes"`
}

// ContextFactors describe the environment a session is running in.
type ContextFactors struct {
	TimeOfDay      string `json:"time_of_day"`
	DayOfWeek      string `json:"day_of_week"`
	DeviceType     string `json:"device_type"`
	NetworkQuality string `json:"network_quality"`
	Location       string `json:"location"`
}

// SessionContext is the live state for one session. The owning manager
// serializes all access; callers receive snapshots, never shared pointers
// into the interaction slice.
type SessionContext struct {
	SessionID        string            `json:"session_id"`
	UserID           string            `json:"user_id"`
	StartTime        time.Time         `json:"start_time"`
	CurrentTime      time.Time         `json:"current_time"`
	Interactions     []UserInteraction `json:"interactions"`
	CurrentCardIndex int               `json:"current_card_index"`
	SessionMetrics   SessionMetrics    `json:"session_metrics"`
	UserState        UserState         `json:"user_state"`
	ContextFactors   ContextFactors    `json:"context_factors"`
}

// PositiveFraction returns the fraction of positive actions in the given
// interaction window. Returns 0 for an empty window.
func PositiveFraction(window []UserInteraction) float64 {
	if len(window) == 0 {
		return 0
	}
	positive := 0
	for _, in := range window {
		if in.Action.IsPositive() {
			positive++
		}
	}
	return float64(positive) / float64(len(window))
}
