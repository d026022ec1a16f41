package symbolic

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotReal is returned by CheckNumeric for expressions that cannot be
// evaluated as a real function of the variable.
var ErrNotReal = errors.New("expression is not a real function")

// CheckNumeric verifies that e can be evaluated in double precision as a
// function of v alone. It rejects other symbols, exponents that depend on v,
// divisors that are identically zero and constant parts that are not finite
// reals, such as (-8)**0.5.
func CheckNumeric(e Expr, v string) error {
	switch n := e.(type) {
	case *Const:
		return nil
	case *Var:
		if n.Name != v {
			return fmt.Errorf("unbound symbol %q: %w", n.Name, ErrNotReal)
		}
		return nil
	case *Binary:
		if err := CheckNumeric(n.Left, v); err != nil {
			return err
		}
		if err := CheckNumeric(n.Right, v); err != nil {
			return err
		}
		switch n.Op {
		case OpPow:
			if Contains(n.Right, v) {
				return fmt.Errorf("%s: %w: %w", n, ErrVariableExponent, ErrNotReal)
			}
		case OpDiv:
			if r, err := Rational(n.Right, v); err == nil && r.Num.IsZero() {
				return fmt.Errorf("division by zero in %s: %w", n, ErrNotReal)
			}
		}
		if !Contains(n, v) {
			if x := Eval(n, v, 0); math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%s is not a finite real number: %w", n, ErrNotReal)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown node %v: %w", e, ErrNotReal)
}
