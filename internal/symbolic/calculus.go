package symbolic

import (
	"errors"
	"fmt"
	"math"
)

// ErrVariableExponent is returned by Diff for powers whose exponent depends
// on the differentiation variable; the grammar has no logarithm to express
// the result.
var ErrVariableExponent = errors.New("exponent depends on the variable")

// Diff returns d(e)/d(v).
func Diff(e Expr, v string) (Expr, error) {
	switch n := e.(type) {
	case *Const:
		return Num(0), nil
	case *Var:
		if n.Name == v {
			return Num(1), nil
		}
		return Num(0), nil
	case *Binary:
		dl, err := Diff(n.Left, v)
		if err != nil {
			return nil, err
		}
		if n.Op == OpPow {
			if Contains(n.Right, v) {
				return nil, fmt.Errorf("differentiate %s: %w", n, ErrVariableExponent)
			}
			// n * u**(n-1) * u'
			return Mul(Mul(n.Right, Pow(n.Left, Sub(n.Right, Num(1)))), dl), nil
		}
		dr, err := Diff(n.Right, v)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpAdd:
			return Add(dl, dr), nil
		case OpSub:
			return Sub(dl, dr), nil
		case OpMul:
			return Add(Mul(dl, n.Right), Mul(n.Left, dr)), nil
		case OpDiv:
			num := Sub(Mul(dl, n.Right), Mul(n.Left, dr))
			return Div(num, Pow(n.Right, Num(2))), nil
		}
	}
	return nil, fmt.Errorf("differentiate %v: unknown node", e)
}

// Eval evaluates e in double precision with v bound to x. Unbound variables
// evaluate to NaN.
func Eval(e Expr, v string, x float64) float64 {
	switch n := e.(type) {
	case *Const:
		return n.Float64()
	case *Var:
		if n.Name == v {
			return x
		}
		return math.NaN()
	case *Binary:
		l := Eval(n.Left, v, x)
		r := Eval(n.Right, v, x)
		switch n.Op {
		case OpAdd:
			return l + r
		case OpSub:
			return l - r
		case OpMul:
			return l * r
		case OpDiv:
			return l / r
		case OpPow:
			return math.Pow(l, r)
		}
	}
	return math.NaN()
}
