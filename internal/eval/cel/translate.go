package cel

import (
	"strings"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/syntax"
	"github.com/aescanero/dago-cel/internal/eval/value"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// failure is what translate knows about a failed evaluation
type failure struct {
	expr     *exprpb.Expr
	vars     map[string]value.Value
	bindings *Context
	dispatch *dispatcher
}

// translate maps an interpreter error onto the error taxonomy
func translate(err error, f failure) error {
	if fault := f.dispatch.fault(err); fault != nil {
		return celerr.FunctionError(fault.name, fault.cause)
	}

	switch celerr.Categorize(err.Error()) {
	case celerr.CategoryMissingAttribute:
		return celerr.UndefinedReference(f.unboundIdent(), err)
	case celerr.CategoryNoOverload:
		if name := f.unknownFunction(); name != "" {
			return celerr.UndefinedReference(name, err)
		}
		return celerr.TypeMismatch(syntax.FindMismatch(f.expr, f.kinds()), err)
	}
	return celerr.Wrap(celerr.KindEvaluationFailure, err, "Evaluation error: %v", err)
}

func (f failure) unboundIdent() string {
	for _, name := range syntax.FreeIdents(f.expr) {
		if _, ok := f.vars[name]; !ok && !f.bindings.HasFunction(name) {
			return name
		}
	}
	return ""
}

func (f failure) unknownFunction() string {
	for _, call := range syntax.CallNames(f.expr) {
		if f.knows(call.Function) || (call.Qualified != "" && f.knows(call.Qualified)) {
			continue
		}
		if call.Qualified != "" {
			if _, isVar := f.vars[strings.SplitN(call.Qualified, ".", 2)[0]]; !isVar {
				return call.Qualified
			}
		}
		return call.Function
	}
	return ""
}

func (f failure) knows(name string) bool {
	return isBuiltin(name, f.bindings) || f.bindings.HasFunction(name)
}

func (f failure) kinds() map[string]value.Kind {
	out := make(map[string]value.Kind, len(f.vars))
	for name, v := range f.vars {
		out[name] = v.Kind()
	}
	return out
}
