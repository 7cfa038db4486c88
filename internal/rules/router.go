package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/aescanero/dago-cel/internal/eval/template"
	"go.uber.org/zap"
)

// Router picks a target from a RuleSet
type Router struct {
	evaluator      *cel.Evaluator
	templateEngine *template.Engine
	logger         *zap.Logger
}

// NewRouter creates a router on top of a shared evaluator
func NewRouter(evaluator *cel.Evaluator, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		evaluator:      evaluator,
		templateEngine: template.NewEngine(),
		logger:         logger,
	}
}

// Decide evaluates the rules in order. The first condition that evaluates
// to true selects its target; rules that fail or do not return a bool are
// skipped. When no rule matches the fallback is selected.
func (r *Router) Decide(ctx context.Context, set *RuleSet, vars interface{}) (*Decision, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	var opts []cel.Option
	if set.Mode != "" {
		opts = append(opts, cel.WithMode(cel.EvaluationMode(set.Mode)))
	}

	decision := &Decision{RuleIndex: -1}
	for i, rule := range set.Rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.logger.Debug("evaluating rule",
			zap.Int("rule_index", i),
			zap.String("condition", rule.Condition),
		)

		result, err := r.evaluator.Evaluate(ctx, rule.Condition, vars, opts...)
		if err != nil {
			r.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			decision.Skipped = append(decision.Skipped, Skip{RuleIndex: i, Reason: err.Error()})
			continue
		}

		matched, ok := result.(bool)
		if !ok {
			r.logger.Warn("rule condition did not return boolean",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Any("result", result),
			)
			decision.Skipped = append(decision.Skipped, Skip{
				RuleIndex: i,
				Reason:    fmt.Sprintf("condition returned %T, not bool", result),
			})
			continue
		}

		if matched {
			target, err := r.target(rule.Target, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", rule.label(i), err)
			}
			r.logger.Info("rule matched",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.String("target", target),
			)
			decision.Target = target
			decision.Reasoning = fmt.Sprintf("matched %s: %s", rule.label(i), rule.Condition)
			decision.PathTaken = PathFast
			decision.RuleIndex = i
			return decision, nil
		}
	}

	r.logger.Info("no rules matched, using fallback",
		zap.String("fallback", set.Fallback),
	)
	target, err := r.target(set.Fallback, vars)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	decision.Target = target
	decision.Reasoning = "no rules matched"
	decision.PathTaken = PathFallback
	return decision, nil
}

// target renders targets written as Handlebars templates against the
// evaluation variables
func (r *Router) target(raw string, vars interface{}) (string, error) {
	if !strings.Contains(raw, "{{") {
		return raw, nil
	}
	data := vars
	if c, ok := vars.(*cel.Context); ok && c != nil {
		data = c.Variables()
	}
	return r.templateEngine.Render(raw, data)
}
