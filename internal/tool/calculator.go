package tool

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Calculator evaluates an arithmetic expression: + - * / %, parentheses
// and the functions sqrt, pow, abs, floor, ceil, round.
type Calculator struct{}

// Name implements Tool.
func (Calculator) Name() string { return "calculator" }

// Description implements Tool.
func (Calculator) Description() string {
	return "Useful for getting the result of a math expression. " +
		"The input to this tool should be a valid mathematical expression that could be executed by a simple calculator."
}

// Parameters implements Tool.
func (Calculator) Parameters() jsonschema.Definition {
	return inputSchema("math expression, e.g. 17 * 7.12")
}

// Call implements Tool.
func (Calculator) Call(_ context.Context, args string) (string, error) {
	expr := singleInput(args)
	if expr == "" {
		return "", fmt.Errorf("calculator: empty expression: %w", domain.ErrInvalidInput)
	}
	v, err := Evaluate(expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Evaluate computes expr.
func Evaluate(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("calculator: parse %q: %v: %w", expr, err, domain.ErrInvalidInput)
	}
	v, err := eval(node)
	if err != nil {
		return 0, fmt.Errorf("calculator: %q: %w", expr, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("calculator: %q is not a finite number: %w", expr, domain.ErrInvalidInput)
	}
	return v, nil
}

func eval(n ast.Expr) (float64, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %s: %w", n.Value, domain.ErrInvalidInput)
		}
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return 0, fmt.Errorf("literal %s: %w", n.Value, domain.ErrInvalidInput)
		}
		return v, nil
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return -x, nil
		}
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero: %w", domain.ErrInvalidInput)
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero: %w", domain.ErrInvalidInput)
			}
			return math.Mod(x, y), nil
		}
	case *ast.CallExpr:
		return call(n)
	}
	return 0, fmt.Errorf("unsupported expression %T: %w", n, domain.ErrInvalidInput)
}

func call(n *ast.CallExpr) (float64, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return 0, fmt.Errorf("unsupported call: %w", domain.ErrInvalidInput)
	}
	args := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	unary := map[string]func(float64) float64{
		"sqrt": math.Sqrt, "abs": math.Abs, "floor": math.Floor, "ceil": math.Ceil, "round": math.Round,
	}
	if f, ok := unary[fn.Name]; ok {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s takes 1 argument: %w", fn.Name, domain.ErrInvalidInput)
		}
		return f(args[0]), nil
	}
	if fn.Name == "pow" {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments: %w", domain.ErrInvalidInput)
		}
		return math.Pow(args[0], args[1]), nil
	}
	return 0, fmt.Errorf("unknown function %s: %w", fn.Name, domain.ErrInvalidInput)
}
