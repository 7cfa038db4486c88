package cel

import (
	"strconv"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/promote"
	"github.com/aescanero/dago-cel/internal/eval/value"
	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Program is a parsed expression that can be executed any number of times.
// It holds no per-execution state and is safe for concurrent use as long as
// each execution gets its own Context.
type Program struct {
	source string
	parsed *exprpb.ParsedExpr
	mode   EvaluationMode
	logger *zap.Logger
}

// Compile parses source. Syntax errors fail with ParseFailure.
func Compile(source string, opts ...Option) (*Program, error) {
	s := newSettings(opts)
	if err := s.mode.Validate(); err != nil {
		return nil, err
	}
	parsed, err := parse(source, s.logger)
	if err != nil {
		return nil, err
	}
	return &Program{
		source: source,
		parsed: parsed,
		mode:   s.mode,
		logger: s.logger,
	}, nil
}

func parse(source string, logger *zap.Logger) (parsed *exprpb.ParsedExpr, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("parser panic contained", zap.String("source", source), zap.Any("panic", r))
			parsed, err = nil, celerr.ParsePanic(source, "parse", r)
		}
	}()

	env, err := baseEnv()
	if err != nil {
		return nil, celerr.Wrap(celerr.KindCompileFailure, err, "Failed to create CEL environment: %v", err)
	}
	ast, iss := env.Parse(source)
	if iss.Err() != nil {
		return nil, celerr.ParseFailure(source, iss.Err())
	}
	parsed, err = cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, celerr.Wrap(celerr.KindCompileFailure, err, "Failed to compile expression '%s': %v", source, err)
	}
	return parsed, nil
}

// Source returns the expression text
func (p *Program) Source() string { return p.source }

// Mode returns the mode executions use unless overridden
func (p *Program) Mode() EvaluationMode { return p.mode }

func (p *Program) String() string {
	return "Program(" + strconv.Quote(p.source) + ")"
}

// Execute evaluates the program against vars, which may be a *Context, a
// map keyed by strings, or nil. WithMode overrides the program's mode for
// this call only.
func (p *Program) Execute(vars interface{}, opts ...Option) (interface{}, error) {
	s := p.settings(opts)
	if err := s.mode.Validate(); err != nil {
		return nil, err
	}
	bindings, err := bindContext(vars)
	if err != nil {
		return nil, err
	}
	return p.execute(bindings, s)
}

func (p *Program) settings(opts []Option) settings {
	s := settings{mode: p.mode, logger: p.logger}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (p *Program) execute(bindings *Context, s settings) (result interface{}, err error) {
	log := s.logger
	defer func() {
		if r := recover(); r != nil {
			log.Error("interpreter panic contained", zap.String("source", p.source), zap.Any("panic", r))
			result, err = nil, celerr.ParsePanic(p.source, "execute", r)
		}
	}()

	expr := p.parsed.GetExpr()
	vars := bindings.snapshot()
	if s.mode == ModePython {
		res := promote.Apply(expr, vars)
		expr, vars = res.Expr, res.Variables
		if res.Promoted {
			log.Debug("promoted integers to doubles",
				zap.String("source", p.source),
				zap.Int("literals", res.Literals),
				zap.Int("variables", res.Vars),
			)
		}
	}

	d := &dispatcher{}
	env, err := p.environment(bindings, d)
	if err != nil {
		return nil, err
	}
	ast := cel.ParsedExprToAst(&exprpb.ParsedExpr{Expr: expr, SourceInfo: p.parsed.GetSourceInfo()})
	prg, err := env.Program(ast)
	if err != nil {
		return nil, celerr.Wrap(celerr.KindCompileFailure, err, "Failed to compile expression '%s': %v", p.source, err)
	}

	activation := make(map[string]interface{}, len(vars))
	for name, v := range vars {
		activation[name] = value.ToCEL(v)
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		translated := translate(err, failure{
			expr:     expr,
			vars:     vars,
			bindings: bindings,
			dispatch: d,
		})
		log.Debug("evaluation failed",
			zap.String("source", p.source),
			zap.String("kind", celerr.KindOf(translated).String()),
			zap.Error(err),
		)
		return nil, translated
	}

	v, err := value.FromCEL(out)
	if err != nil {
		return nil, err
	}
	return value.ConvertOut(v), nil
}

// environment extends the base environment with the functions of bindings.
// Functions named like a string extension function replace the extension.
func (p *Program) environment(bindings *Context, d *dispatcher) (*cel.Env, error) {
	base := baseEnv
	if shadowsExtension(bindings) {
		base = coreEnv
	}
	env, err := base()
	if err != nil {
		return nil, celerr.Wrap(celerr.KindCompileFailure, err, "Failed to create CEL environment: %v", err)
	}
	if len(bindings.functions) == 0 {
		return env, nil
	}
	extended, err := env.Extend(d.declarations(bindings)...)
	if err != nil {
		return nil, celerr.Wrap(celerr.KindCompileFailure, err, "Failed to register functions %v: %v", bindings.FunctionNames(), err)
	}
	return extended, nil
}

// Evaluate binds vars, compiles source and executes it once. vars is bound
// first so that an invalid context is reported before any parse error.
func Evaluate(source string, vars interface{}, opts ...Option) (interface{}, error) {
	s := newSettings(opts)
	if err := s.mode.Validate(); err != nil {
		return nil, err
	}
	bindings, err := bindContext(vars)
	if err != nil {
		return nil, err
	}
	p, err := Compile(source, opts...)
	if err != nil {
		return nil, err
	}
	return p.execute(bindings, s)
}
