package cel

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Evaluator evaluates CEL expressions, caching compiled programs by source
type Evaluator struct {
	mode      EvaluationMode
	logger    *zap.Logger
	cacheSize int

	cache map[string]*Program
	mu    sync.RWMutex
	group singleflight.Group
}

// NewEvaluator creates a new evaluator. WithMode sets the default mode of
// every evaluation, WithCacheSize bounds the program cache.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	s := newSettings(opts)
	if err := s.mode.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		mode:      s.mode,
		logger:    s.logger,
		cacheSize: s.cacheSize,
		cache:     make(map[string]*Program),
	}, nil
}

// Evaluate evaluates an expression with the given variables. vars takes the
// same shapes as Program.Execute. ctx is checked before evaluation starts;
// a running evaluation is not interrupted.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars interface{}, opts ...Option) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	program, err := e.getProgram(expression)
	if err != nil {
		return nil, err
	}
	return program.Execute(vars, opts...)
}

// Compile returns the cached program for expression, compiling it on first use
func (e *Evaluator) Compile(expression string) (*Program, error) {
	return e.getProgram(expression)
}

// getProgram gets a compiled program from cache or compiles it. Concurrent
// compiles of the same expression share one result.
func (e *Evaluator) getProgram(expression string) (*Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	v, err, _ := e.group.Do(expression, func() (interface{}, error) {
		e.mu.RLock()
		program, ok := e.cache[expression]
		e.mu.RUnlock()
		if ok {
			return program, nil
		}

		program, err := Compile(expression, WithMode(e.mode), WithLogger(e.logger))
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.cacheSize > 0 && len(e.cache) >= e.cacheSize {
			e.evictLocked()
		}
		e.cache[expression] = program
		return program, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Program), nil
}

// evictLocked drops one arbitrary entry. Caller holds mu.
func (e *Evaluator) evictLocked() {
	for source := range e.cache {
		delete(e.cache, source)
		e.logger.Debug("evicted program from cache", zap.String("source", source))
		return
	}
}

// Validate checks that expression parses without evaluating it
func (e *Evaluator) Validate(expression string) error {
	_, err := e.getProgram(expression)
	return err
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*Program)
}

// CacheSize returns the number of cached programs
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// Mode returns the default evaluation mode
func (e *Evaluator) Mode() EvaluationMode {
	return e.mode
}
