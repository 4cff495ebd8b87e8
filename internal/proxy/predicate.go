package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/cel-go/cel"
)

// Hardening limits on the optional gating expression a pass may carry as
// its Pass.Guard.
const (
	maxWhenExpressionLength = 1024
	maxWhenCostBudget       = 100_000
	maxWhenNestingDepth     = 50
	whenEvalTimeout         = 5 * time.Second
	whenInterruptCheckFreq  = 100
)

// Predicate is a compiled CEL boolean expression gating whether a pass
// runs for a given request. It is evaluated against a small, fixed set of
// request-metadata variables — never the request body, matching the
// "no content inspection" non-goal.
type Predicate struct {
	prg cel.Program
}

var whenEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("header", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		panic(fmt.Sprintf("proxy: building predicate environment: %v", err))
	}
	whenEnv = env
}

// CompilePredicate validates and compiles expr, rejecting anything too
// long, too deeply nested, or that fails to type-check as a bool.
func CompilePredicate(expr string) (*Predicate, error) {
	if len(expr) > maxWhenExpressionLength {
		return nil, fmt.Errorf("proxy: when-expression too long: %d chars (max %d)", len(expr), maxWhenExpressionLength)
	}
	if err := validateWhenNesting(expr); err != nil {
		return nil, err
	}

	ast, issues := whenEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("proxy: compiling when-expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("proxy: when-expression must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := whenEnv.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxWhenCostBudget),
		cel.InterruptCheckFrequency(whenInterruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("proxy: building when-expression program: %w", err)
	}
	return &Predicate{prg: prg}, nil
}

func validateWhenNesting(expr string) error {
	var depth, max int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > max {
				max = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if max > maxWhenNestingDepth {
		return fmt.Errorf("proxy: when-expression nesting too deep: %d levels (max %d)", max, maxWhenNestingDepth)
	}
	return nil
}

// Eval reports whether the predicate allows the pass to run for req. A nil
// Predicate always allows. Evaluation errors are treated as "don't run" —
// a malformed/unsafe expression should never cause a pass to fire.
func (p *Predicate) Eval(req *http.Request) bool {
	if p == nil {
		return true
	}
	headers := make(map[string]string, len(req.Header))
	for k := range req.Header {
		headers[k] = req.Header.Get(k)
	}
	vars := map[string]any{
		"method": req.Method,
		"path":   req.URL.Path,
		"host":   req.Host,
		"header": headers,
	}

	ctx, cancel := context.WithTimeout(context.Background(), whenEvalTimeout)
	defer cancel()

	result, _, err := p.prg.ContextEval(ctx, vars)
	if err != nil {
		return false
	}
	ok, isBool := result.Value().(bool)
	return isBool && ok
}
