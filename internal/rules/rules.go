package rules

import (
	"fmt"
	"os"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"gopkg.in/yaml.v3"
)

// RuleSet is an ordered list of rules with a fallback target
type RuleSet struct {
	Rules    []Rule `json:"rules" yaml:"rules"`
	Fallback string `json:"fallback" yaml:"fallback"`

	// Mode is the evaluation mode for every condition; empty means the
	// router's default.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Rule selects Target when Condition evaluates to true
type Rule struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Condition string `json:"condition" yaml:"condition"`
	Target    string `json:"target" yaml:"target"`
}

// Path values reported in a Decision
const (
	PathFast     = "fast"
	PathFallback = "fallback"
)

// Decision is the outcome of evaluating a RuleSet
type Decision struct {
	Target    string `json:"target"`
	Reasoning string `json:"reasoning"`
	PathTaken string `json:"path_taken"`

	// RuleIndex is the matching rule, or -1 for the fallback
	RuleIndex int    `json:"rule_index"`
	Skipped   []Skip `json:"skipped,omitempty"`
}

// Skip records a rule that could not be decided
type Skip struct {
	RuleIndex int    `json:"rule_index"`
	Reason    string `json:"reason"`
}

// Parse decodes a rule set from YAML or JSON and validates it
func Parse(data []byte) (*RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Load reads a rule set file
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	return Parse(data)
}

// Validate checks that the rule set is complete
func (s *RuleSet) Validate() error {
	if s == nil {
		return fmt.Errorf("rule set is nil")
	}
	if s.Fallback == "" {
		return fmt.Errorf("fallback target is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("at least one rule is required")
	}
	if s.Mode != "" {
		if _, err := cel.ParseMode(s.Mode); err != nil {
			return err
		}
	}
	for i, rule := range s.Rules {
		if rule.Condition == "" {
			return fmt.Errorf("rule %d: condition is required", i)
		}
		if rule.Target == "" {
			return fmt.Errorf("rule %d: target is required", i)
		}
	}
	return nil
}

func (r Rule) label(i int) string {
	if r.Name != "" {
		return fmt.Sprintf("rule %d (%s)", i, r.Name)
	}
	return fmt.Sprintf("rule %d", i)
}
