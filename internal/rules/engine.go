// Package rules evaluates declarative optimization rules against live
// session metrics.
package rules

import (
	"sort"
	"sync"
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"
)

// Engine evaluates optimization rules against session metric snapshots.
// Rules are stateless between evaluations except for lastTriggered and
// successRate bookkeeping, which are informational only and never gate
// re-triggering: a rule may fire on consecutive evaluations.
type Engine struct {
	rules   []models.OptimizationRule
	nowFunc func() time.Time
	mu      sync.RWMutex
}

// NewEngine creates a rule engine with the given rule set.
// A nil or empty set falls back to the built-in defaults.
func NewEngine(ruleSet []models.OptimizationRule) *Engine {
	if len(ruleSet) == 0 {
		ruleSet = models.DefaultOptimizationRules()
	}
	return &Engine{
		rules:   ruleSet,
		nowFunc: time.Now,
	}
}

// SetRules replaces the active rule set (hot reload path).
func (e *Engine) SetRules(ruleSet []models.OptimizationRule) {
	if len(ruleSet) == 0 {
		return
	}
	e.mu.Lock()
	e.rules = ruleSet
	e.mu.Unlock()
	log.Info().Int("rules", len(ruleSet)).Msg("Optimization rule set replaced")
}

// Rules returns a copy of the active rule set.
func (e *Engine) Rules() []models.OptimizationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.OptimizationRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate checks every enabled rule against the session's metric snapshot.
// A rule triggers when all of its conditions hold. Triggered actions are
// returned in ascending priority order; one rule triggering never
// short-circuits evaluation of the others.
func (e *Engine) Evaluate(sess models.SessionContext) []models.TriggeredAction {
	snapshot := MetricSnapshot(sess)
	now := e.nowFunc()

	e.mu.Lock()
	defer e.mu.Unlock()

	var triggered []models.TriggeredAction
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled || len(rule.Conditions) == 0 {
			continue
		}

		holds := true
		for _, cond := range rule.Conditions {
			value, ok := snapshot[cond.Metric]
			if !ok || !cond.Holds(value) {
				holds = false
				break
			}
		}
		if !holds {
			continue
		}

		rule.LastTriggered = now
		triggered = append(triggered, models.TriggeredAction{
			RuleID:      rule.ID,
			Action:      rule.Action,
			ActionValue: rule.ActionValue,
			Strategy:    rule.Strategy,
			Priority:    rule.Priority,
		})
	}

	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Priority < triggered[j].Priority
	})
	return triggered
}

// RecordOutcome folds one observed success or failure into a rule's
// empirical success rate. Informational bookkeeping only.
func (e *Engine) RecordOutcome(ruleID string, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].ID != ruleID {
			continue
		}
		outcome := 0.0
		if success {
			outcome = 1.0
		}
		// Exponential moving average keeps the rate bounded and recent.
		e.rules[i].SuccessRate = 0.9*e.rules[i].SuccessRate + 0.1*outcome
		return
	}
}

// MetricSnapshot flattens a session into the metric map rules evaluate
// against. Total over its input: degenerate sessions produce zeros.
func MetricSnapshot(sess models.SessionContext) map[string]float64 {
	m := sess.SessionMetrics
	return map[string]float64{
		models.MetricEngagementScore:       m.EngagementScore,
		models.MetricInteractionRate:       m.InteractionRate,
		models.MetricAverageTimePerCard:    m.AverageTimePerCard,
		models.MetricPersonalizationEffect: models.PositiveFraction(sess.Interactions),
		models.MetricContentVariance:       contentEngagementVariance(sess.Interactions),
	}
}

// contentEngagementVariance is the sample variance of per-card-type
// positive rates across the card types this session has touched.
func contentEngagementVariance(interactions []models.UserInteraction) float64 {
	totals := make(map[models.CardType]int)
	positives := make(map[models.CardType]int)
	for _, in := range interactions {
		totals[in.CardType]++
		if in.Action.IsPositive() {
			positives[in.CardType]++
		}
	}
	if len(totals) < 2 {
		return 0
	}

	rates := make([]float64, 0, len(totals))
	for cardType, total := range totals {
		rates = append(rates, float64(positives[cardType])/float64(total))
	}

	variance, err := stats.SampleVariance(rates)
	if err != nil {
		return 0
	}
	return variance
}
