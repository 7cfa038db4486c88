package cel

import (
	"github.com/aescanero/dago-cel/internal/eval/celerr"
)

// EvaluationMode selects how numeric literals and variables are typed
type EvaluationMode string

const (
	// ModePython promotes integers to doubles when a double takes part in
	// the evaluation, so mixed arithmetic works as in Python.
	ModePython EvaluationMode = "python"

	// ModeStrict evaluates with CEL's native typing; mixing int and double
	// in arithmetic is a type mismatch.
	ModeStrict EvaluationMode = "strict"
)

// DefaultMode is used when no mode is given
const DefaultMode = ModePython

// ParseMode parses a case-sensitive mode name
func ParseMode(s string) (EvaluationMode, error) {
	m := EvaluationMode(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate fails with TypeMismatch when m is not a known mode
func (m EvaluationMode) Validate() error {
	switch m {
	case ModePython, ModeStrict:
		return nil
	}
	return celerr.InvalidMode(string(m))
}

func (m EvaluationMode) String() string {
	return string(m)
}
