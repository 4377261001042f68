package models

import "time"

// Comparator names a threshold comparison in a rule condition.
type Comparator string

const (
	CompareLessThan    Comparator = "lt"
	CompareGreaterThan Comparator = "gt"
	CompareLessEqual   Comparator = "lte"
	CompareGreaterEq   Comparator = "gte"
)

// Metric names used in rule conditions. These key into the evaluated
// metric snapshot of a session.
const (
	MetricEngagementScore       = "engagement_score"
	MetricInteractionRate       = "interaction_rate"
	MetricPersonalizationEffect = "personalization_effectiveness"
	MetricContentVariance       = "content_engagement_variance"
	MetricAverageTimePerCard    = "average_time_per_card"
)

// Action names carried on optimization rules.
const (
	ActionTriggerIntervention     = "trigger_intervention"
	ActionDecreasePersonalization = "decrease_personalization"
	ActionReorderContent          = "reorder_content"
)

// RuleCondition is one (metric, comparator, threshold) clause.
// All conditions on a rule must hold for the rule to trigger.
type RuleCondition struct {
	Metric     string     `json:"metric" yaml:"metric"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Threshold  float64    `json:"threshold" yaml:"threshold"`
}

// Holds reports whether the condition is satisfied by the given value.
func (c RuleCondition) Holds(value float64) bool {
	switch c.Comparator {
	case CompareLessThan:
		return value < c.Threshold
	case CompareGreaterThan:
		return value > c.Threshold
	case CompareLessEqual:
		return value <= c.Threshold
	case CompareGreaterEq:
		return value >= c.Threshold
	}
	return false
}

// OptimizationRule is a declarative trigger. Rules are configuration data,
// not code: LastTriggered and SuccessRate are informational bookkeeping and
// never gate re-triggering.
type OptimizationRule struct {
	ID            string          `json:"id" yaml:"id"`
	Conditions    []RuleCondition `json:"conditions" yaml:"conditions"`
	Action        string          `json:"action" yaml:"action"`
	ActionValue   float64         `json:"action_value,omitempty" yaml:"action_value"`
	Strategy      string          `json:"strategy,omitempty" yaml:"strategy"`
	Priority      int             `json:"priority" yaml:"priority"`
	Enabled       bool            `json:"enabled" yaml:"enabled"`
	SuccessRate   float64         `json:"success_rate" yaml:"success_rate"`
	LastTriggered time.Time       `json:"last_triggered,omitempty" yaml:"-"`
}

// TriggeredAction is the output of a rule evaluation pass.
type TriggeredAction struct {
	RuleID      string  `json:"rule_id"`
	Action      string  `json:"action"`
	ActionValue float64 `json:"action_value,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Priority    int     `json:"priority"`
}

// DefaultOptimizationRules returns the built-in rule set. Deployments may
// override it via the rules configuration file.
func DefaultOptimizationRules() []OptimizationRule {
	return []OptimizationRule{
		{
			ID: "dropoff",
			Conditions: []RuleCondition{
				{Metric: MetricEngagementScore, Comparator: CompareLessThan, Threshold: 0.3},
				{Metric: MetricInteractionRate, Comparator: CompareLessThan, Threshold: 0.1},
			},
			Action:   ActionTriggerIntervention,
			Priority: 1,
			Enabled:  true,
		},
		{
			ID: "personalization",
			Conditions: []RuleCondition{
				{Metric: MetricPersonalizationEffect, Comparator: CompareLessThan, Threshold: 0.5},
			},
			Action:      ActionDecreasePersonalization,
			ActionValue: 0.1,
			Priority:    2,
			Enabled:     true,
		},
		{
			ID: "reordering",
			Conditions: []RuleCondition{
				{Metric: MetricContentVariance, Comparator: CompareGreaterThan, Threshold: 0.3},
			},
			Action:   ActionReorderContent,
			Strategy: "engagement_based",
			Priority: 3,
			Enabled:  true,
		},
	}
}
