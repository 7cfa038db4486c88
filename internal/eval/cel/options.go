package cel

import (
	"go.uber.org/zap"
)

// Option configures compilation, execution and evaluators
type Option func(*settings)

type settings struct {
	mode      EvaluationMode
	modeSet   bool
	logger    *zap.Logger
	cacheSize int
}

func newSettings(opts []Option) settings {
	s := settings{
		mode:   DefaultMode,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithMode sets the evaluation mode
func WithMode(mode EvaluationMode) Option {
	return func(s *settings) {
		s.mode = mode
		s.modeSet = true
	}
}

// WithLogger sets the logger used for debug traces and contained panics
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheSize bounds the number of programs an Evaluator keeps. Zero or
// less means unbounded.
func WithCacheSize(n int) Option {
	return func(s *settings) {
		s.cacheSize = n
	}
}
