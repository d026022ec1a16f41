package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// MaxDegree bounds the degree of both halves of a rational normal form.
const MaxDegree = 64

// ErrNotRational is returned when an expression has no exact rational
// function form in the requested variable.
var ErrNotRational = errors.New("expression is not a rational function")

// ErrFractionalExponent marks a power with a constant non-integer exponent.
// Such an expression has no rational form but can still be evaluated
// numerically; it wraps ErrNotRational.
var ErrFractionalExponent = fmt.Errorf("%w: fractional exponent", ErrNotRational)

// RatFunc is N(v)/D(v) with gcd(N, D) = 1 and D monic.
type RatFunc struct {
	Num Poly
	Den Poly
}

// Rational returns the exact normal form of e as a rational function of v.
func Rational(e Expr, v string) (RatFunc, error) {
	r, err := toRational(e, v)
	if err != nil {
		return RatFunc{}, err
	}
	return r.reduce(), nil
}

func toRational(e Expr, v string) (RatFunc, error) {
	switch n := e.(type) {
	case *Const:
		return RatFunc{Num: constPoly(n.val), Den: PolyOf(1)}, nil
	case *Var:
		if n.Name != v {
			return RatFunc{}, fmt.Errorf("unbound symbol %q: %w", n.Name, ErrNotRational)
		}
		return RatFunc{Num: monomial(1), Den: PolyOf(1)}, nil
	case *Binary:
		l, err := toRational(n.Left, v)
		if err != nil {
			return RatFunc{}, err
		}
		if n.Op == OpPow {
			return powRational(l, n.Right, v)
		}
		r, err := toRational(n.Right, v)
		if err != nil {
			return RatFunc{}, err
		}
		var out RatFunc
		switch n.Op {
		case OpAdd, OpSub:
			a, b := l.Num.Mul(r.Den), r.Num.Mul(l.Den)
			if n.Op == OpAdd {
				out.Num = a.Add(b)
			} else {
				out.Num = a.Sub(b)
			}
			out.Den = l.Den.Mul(r.Den)
		case OpMul:
			out = RatFunc{Num: l.Num.Mul(r.Num), Den: l.Den.Mul(r.Den)}
		case OpDiv:
			if r.Num.IsZero() {
				return RatFunc{}, fmt.Errorf("division by zero in %s: %w", n, ErrNotRational)
			}
			out = RatFunc{Num: l.Num.Mul(r.Den), Den: l.Den.Mul(r.Num)}
		default:
			return RatFunc{}, fmt.Errorf("unknown operator %q: %w", n.Op, ErrNotRational)
		}
		out = out.reduce()
		if err := out.checkDegree(); err != nil {
			return RatFunc{}, err
		}
		return out, nil
	}
	return RatFunc{}, fmt.Errorf("unknown node %v: %w", e, ErrNotRational)
}

func powRational(base RatFunc, exp Expr, v string) (RatFunc, error) {
	er, err := toRational(exp, v)
	if err != nil {
		return RatFunc{}, err
	}
	if er.Num.Degree() > 0 || er.Den.Degree() > 0 {
		return RatFunc{}, fmt.Errorf("exponent %s depends on %s: %w", exp, v, ErrNotRational)
	}
	k := er.Num.Coeff(0)
	if !k.IsInt() || !k.Num().IsInt64() {
		return RatFunc{}, fmt.Errorf("exponent %s: %w", k.RatString(), ErrFractionalExponent)
	}
	n := k.Num().Int64()
	if n < 0 {
		if base.Num.IsZero() {
			return RatFunc{}, fmt.Errorf("zero raised to %d: %w", n, ErrNotRational)
		}
		base = RatFunc{Num: base.Den, Den: base.Num}
		n = -n
	}
	top := max(base.Num.Degree(), base.Den.Degree())
	if n > MaxDegree || int64(top)*n > MaxDegree {
		return RatFunc{}, fmt.Errorf("power %d exceeds degree %d: %w", n, MaxDegree, ErrNotRational)
	}
	out := RatFunc{Num: base.Num.Pow(int(n)), Den: base.Den.Pow(int(n))}
	return out.reduce(), nil
}

func (r RatFunc) checkDegree() error {
	if r.Num.Degree() > MaxDegree || r.Den.Degree() > MaxDegree {
		return fmt.Errorf("degree above %d: %w", MaxDegree, ErrNotRational)
	}
	return nil
}

func (r RatFunc) reduce() RatFunc {
	if r.Num.IsZero() {
		return RatFunc{Den: PolyOf(1)}
	}
	g := GCD(r.Num, r.Den)
	num, den := r.Num, r.Den
	if g.Degree() > 0 {
		num, _ = num.DivMod(g)
		den, _ = den.DivMod(g)
	}
	inv := new(big.Rat).Inv(den.lead())
	return RatFunc{Num: num.Scale(inv), Den: den.Scale(inv)}
}

// IsPolynomial reports whether the denominator is the constant one.
func (r RatFunc) IsPolynomial() bool { return r.Den.Degree() == 0 }

// Deriv returns the exact derivative (N'D - ND') / D**2 in normal form.
func (r RatFunc) Deriv() RatFunc {
	num := r.Num.Deriv().Mul(r.Den).Sub(r.Num.Mul(r.Den.Deriv()))
	return RatFunc{Num: num, Den: r.Den.Mul(r.Den)}.reduce()
}

// ErrPole is returned when a rational function is evaluated at a zero of its
// denominator.
var ErrPole = errors.New("denominator vanishes")

// EvalRat evaluates r exactly at x.
func (r RatFunc) EvalRat(x *big.Rat) (*big.Rat, error) {
	d := r.Den.EvalRat(x)
	if d.Sign() == 0 {
		return nil, fmt.Errorf("at %s: %w", x.RatString(), ErrPole)
	}
	return d.Quo(r.Num.EvalRat(x), d), nil
}

// EvalFloat evaluates r at x in double precision. Poles give ±Inf or NaN.
func (r RatFunc) EvalFloat(x float64) float64 {
	d := r.Den.EvalFloat(x)
	if d == 0 {
		return math.Inf(1)
	}
	return r.Num.EvalFloat(x) / d
}

// Expr rebuilds r as an expression tree in v.
func (r RatFunc) Expr(v string) Expr {
	num := polyExpr(r.Num, v)
	if r.IsPolynomial() {
		return num
	}
	return Div(num, polyExpr(r.Den, v))
}

func polyExpr(p Poly, v string) Expr {
	var out Expr = Num(0)
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Sign() == 0 {
			continue
		}
		out = Add(out, Mul(Rat(p[i]), Pow(Symbol(v), Num(int64(i)))))
	}
	return out
}

// String prints r in v, e.g. "-x**2 + 98*x - 10" or "(x + 1)/(x - 2)".
func (r RatFunc) String(v string) string {
	num := r.Num.String(v)
	if r.IsPolynomial() {
		return num
	}
	den := r.Den.String(v)
	var sb strings.Builder
	if terms(r.Num) > 1 {
		num = "(" + num + ")"
	}
	sb.WriteString(num)
	sb.WriteByte('/')
	// A bare power binds tighter than /, anything else needs parentheses.
	if terms(r.Den) > 1 || strings.ContainsAny(strings.ReplaceAll(den, "**", ""), "*/") {
		den = "(" + den + ")"
	}
	sb.WriteString(den)
	return sb.String()
}

func terms(p Poly) int {
	n := 0
	for _, c := range p {
		if c.Sign() != 0 {
			n++
		}
	}
	return n
}
