// Package jsengine evaluates the ${...} expressions that feature files use in
// step arguments, with the scenario and suite data of the run in scope.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
	"github.com/devicelab-dev/mobile-e2e/pkg/testdata"
)

// Engine wraps a goja runtime bound to a Store.
type Engine struct {
	runtime   *goja.Runtime
	store     *datastore.Store
	variables map[string]interface{}
	mu        sync.Mutex
}

// New creates an engine over store. env is exposed read-only as the global
// "env" object (env.COUNTRY, env.LOCALE, ...).
func New(store *datastore.Store, env map[string]string) *Engine {
	if store == nil {
		store = datastore.New()
	}
	e := &Engine{
		runtime:   goja.New(),
		store:     store,
		variables: make(map[string]interface{}),
	}
	e.setupBuiltins(env)
	return e
}

func (e *Engine) setupBuiltins(env map[string]string) {
	e.setupConsole()

	vars := make(map[string]interface{}, len(env))
	for k, v := range env {
		vars[k] = v
	}
	e.runtime.Set("env", vars)
	e.runtime.Set("json", e.jsonFunc())
	e.runtime.Set("scenario", e.scopeObject(e.store.Lookup, e.store.Set))
	e.runtime.Set("suite", e.scopeObject(e.store.LookupSuite, e.store.SetSuite))
	e.runtime.Set("random", e.randomObject(testdata.New()))
}

// setupConsole routes console.log/warn/error to the process logger.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log("js: %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// scopeObject exposes one store scope as {get, has, set}.
func (e *Engine) scopeObject(lookup func(string) (interface{}, bool), set func(string, interface{})) *goja.Object {
	obj := e.runtime.NewObject()

	obj.Set("get", func(key string) interface{} {
		v, _ := lookup(key)
		return v
	})
	obj.Set("has", func(key string) bool {
		_, ok := lookup(key)
		return ok
	})
	obj.Set("set", func(key string, value goja.Value) {
		set(key, value.Export())
	})

	return obj
}

// randomObject exposes the test data generators.
func (e *Engine) randomObject(g *testdata.Generator) *goja.Object {
	obj := e.runtime.NewObject()

	obj.Set("email", g.RandomEmail)
	obj.Set("number", g.RandomNumberOfLength)
	obj.Set("mobile", func(region string) string {
		n, err := g.RandomMobileNumber(region)
		if err != nil {
			panic(e.runtime.NewTypeError(err.Error()))
		}
		return n
	})
	obj.Set("price", testdata.FormatPrice)

	return obj
}

// jsonFunc returns the json() helper: json('{"a":1}').a
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		parse, _ := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		result, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}

	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// ExpandVariables replaces every ${expr} in text with the evaluated
// expression. Expressions that fail to evaluate are left as written so the
// step sees the literal text.
func (e *Engine) ExpandVariables(text string) string {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}

		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]
		value, err := e.EvalString(expr)
		if err != nil {
			logger.Debug("expand %q: %v", expr, err)
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result
}
