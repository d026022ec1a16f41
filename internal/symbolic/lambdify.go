package symbolic

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// Func is a compiled numeric function of one variable. A Func keeps its own
// parameter map and must not be shared between goroutines.
type Func struct {
	variable string
	expr     *govaluate.EvaluableExpression
	params   map[string]interface{}
}

// Lambdify compiles e into a numeric function of v.
func Lambdify(e Expr, v string) (*Func, error) {
	var sb strings.Builder
	writeSource(&sb, e)
	parsed, err := govaluate.NewEvaluableExpression(sb.String())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", e, err)
	}
	return &Func{
		variable: v,
		expr:     parsed,
		params:   map[string]interface{}{v: 0.0},
	}, nil
}

// Eval evaluates the function at x.
func (f *Func) Eval(x float64) (float64, error) {
	f.params[f.variable] = x
	v, err := f.expr.Evaluate(f.params)
	if err != nil {
		return math.NaN(), err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return math.NaN(), fmt.Errorf("expression returned %T, not a number", v)
	}
}

// writeSource emits a fully parenthesised govaluate expression. govaluate's
// prefix minus binds tighter than **, so precedence is never left to it.
func writeSource(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Const:
		f := n.Float64()
		s := strconv.FormatFloat(math.Abs(f), 'f', -1, 64)
		if f < 0 {
			sb.WriteString("(-" + s + ")")
			return
		}
		sb.WriteString(s)
	case *Var:
		sb.WriteString(n.Name)
	case *Binary:
		sb.WriteByte('(')
		writeSource(sb, n.Left)
		sb.WriteString(" " + n.Op.String() + " ")
		writeSource(sb, n.Right)
		sb.WriteByte(')')
	}
}
