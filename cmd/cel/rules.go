package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aescanero/dago-cel/internal/output"
	"github.com/aescanero/dago-cel/internal/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules <rule-file>",
		Short: "Pick a target from a YAML or JSON rule set",
		Long: `rules evaluates the conditions of a rule set in order and prints the
target of the first one that is true, or the fallback.

  rules:
    - name: urgent
      condition: priority > 8
      target: escalate
    - condition: "'billing' in tags"
      target: "queue-{{team}}"
  fallback: triage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runRules(cmd.Context(), args[0])
		},
	}
}

func (o *options) runRules(ctx context.Context, path string) error {
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return err
	}
	set, err := rules.Load(path)
	if err != nil {
		return err
	}
	evaluator, err := o.evaluator()
	if err != nil {
		return err
	}
	vars, err := o.variables()
	if err != nil {
		return err
	}

	decision, err := rules.NewRouter(evaluator, o.logger).Decide(ctx, set, vars)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		b, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode decision: %w", err)
		}
		fmt.Fprintln(o.stdout, string(b))
		return nil
	}

	fmt.Fprintln(o.stdout, decision.Target)
	if o.verbose || format == output.FormatPretty {
		fmt.Fprintf(o.stderr, "Reasoning: %s\n", decision.Reasoning)
		for _, skip := range decision.Skipped {
			fmt.Fprintf(o.stderr, "Skipped rule %d: %s\n", skip.RuleIndex, skip.Reason)
		}
	}
	return nil
}
