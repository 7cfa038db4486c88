package cel

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/stdlib"
	"github.com/google/cel-go/ext"
)

// optionalFunctions are declared by cel.OptionalTypes
var optionalFunctions = []string{
	"optional.of", "optional.ofNonZeroValue", "optional.none",
	"value", "hasValue", "or", "orValue",
}

// stringFunctions are declared by ext.Strings. A host function may take any
// of these names; the execution then runs without the string extension.
var stringFunctions = map[string]bool{
	"charAt":        true,
	"format":        true,
	"indexOf":       true,
	"join":          true,
	"lastIndexOf":   true,
	"lowerAscii":    true,
	"strings.quote": true,
	"replace":       true,
	"reverse":       true,
	"split":         true,
	"substring":     true,
	"trim":          true,
	"upperAscii":    true,
}

var standardFunctions = sync.OnceValue(func() map[string]bool {
	names := make(map[string]bool, len(stdlib.Functions())+len(optionalFunctions))
	for _, fn := range stdlib.Functions() {
		names[fn.Name()] = true
	}
	for _, name := range optionalFunctions {
		names[name] = true
	}
	return names
})

// baseEnv is shared by every program. Expressions are parsed but not type
// checked, so variables need no declarations and typing happens at runtime.
var baseEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(coreOptions(ext.Strings())...)
})

// coreEnv is baseEnv without the string extension
var coreEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(coreOptions()...)
})

func coreOptions(extra ...cel.EnvOption) []cel.EnvOption {
	return append([]cel.EnvOption{
		cel.OptionalTypes(),
		cel.CrossTypeNumericComparisons(true),
	}, extra...)
}

// shadowsExtension reports whether c registers a function named like one of
// the string extension functions
func shadowsExtension(c *Context) bool {
	for name := range c.functions {
		if stringFunctions[name] {
			return true
		}
	}
	return false
}

// isBuiltin reports whether name is a function of the environment an
// execution with bindings runs in
func isBuiltin(name string, bindings *Context) bool {
	if standardFunctions()[name] {
		return true
	}
	return stringFunctions[name] && !shadowsExtension(bindings)
}
