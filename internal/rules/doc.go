// Package rules selects a target from an ordered list of CEL conditions.
//
// Rules are evaluated in order; the first condition that evaluates to true
// wins. A rule whose condition fails or returns a non-bool is skipped and
// recorded in the decision. When nothing matches, the fallback is used.
//
// Example rule set (YAML or JSON):
//
//	mode: python
//	fallback: default_handler
//	rules:
//	  - name: urgent
//	    condition: state.priority == 'high'
//	    target: urgent_handler
//	  - condition: state.score > 0.8
//	    target: "premium-{{state.region}}"
//
// Targets containing {{...}} are rendered as Handlebars templates against
// the evaluation variables.
package rules
