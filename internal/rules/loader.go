package rules

import (
	"fmt"
	"os"

	"github.com/doubledekr/Dekr-NextGen-sub004/internal/watcher"
	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML shape of the rules configuration file.
type ruleFile struct {
	Rules []models.OptimizationRule `yaml:"rules"`
}

// LoadFile parses an optimization-rule set from a YAML file.
// A missing file returns the built-in defaults.
func LoadFile(path string) ([]models.OptimizationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultOptimizationRules(), nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := validate(file.Rules); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

func validate(ruleSet []models.OptimizationRule) error {
	if len(ruleSet) == 0 {
		return fmt.Errorf("rules file defines no rules")
	}
	for _, rule := range ruleSet {
		if rule.ID == "" {
			return fmt.Errorf("rule without id")
		}
		if rule.Action == "" {
			return fmt.Errorf("rule %s has no action", rule.ID)
		}
		for _, cond := range rule.Conditions {
			if cond.Metric == "" {
				return fmt.Errorf("rule %s has a condition without a metric", rule.ID)
			}
			switch cond.Comparator {
			case models.CompareLessThan, models.CompareGreaterThan,
				models.CompareLessEqual, models.CompareGreaterEq:
			default:
				return fmt.Errorf("rule %s has unknown comparator %q", rule.ID, cond.Comparator)
			}
		}
	}
	return nil
}

// WatchFile reloads the engine's rule set whenever the rules file changes.
// Parse failures keep the previous rule set. Returns the watcher so the
// caller can stop it on shutdown.
func WatchFile(path string, engine *Engine) (*watcher.Watcher, error) {
	w, err := watcher.New(path, func() {
		ruleSet, err := LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Rules reload failed, keeping previous rule set")
			return
		}
		engine.SetRules(ruleSet)
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Rules file watcher started")
	return w, nil
}
