// Package symbolic is a small computer-algebra kernel for single-variable
// arithmetic: exact rational constants, one free variable and the binary
// operators + - * / **.
//
// Expressions are immutable trees. Every transformation (substitution,
// differentiation, normalisation) returns a new tree. Operations are plain
// functions that switch over the three node kinds.
package symbolic

import (
	"math/big"
	"strings"
)

// Op is a binary operator.
type Op byte

const (
	OpAdd Op = '+'
	OpSub Op = '-'
	OpMul Op = '*'
	OpDiv Op = '/'
	OpPow Op = '^'
)

func (o Op) String() string {
	if o == OpPow {
		return "**"
	}
	return string(o)
}

// Expr is a node of an expression tree: *Const, *Var or *Binary.
type Expr interface {
	String() string
	node()
}

// Const is an exact rational constant.
type Const struct{ val *big.Rat }

// Var is the free variable.
type Var struct{ Name string }

// Binary applies Op to two operands.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*Const) node()  {}
func (*Var) node()    {}
func (*Binary) node() {}

// Num returns the integer constant n.
func Num(n int64) *Const { return &Const{val: new(big.Rat).SetInt64(n)} }

// Rat returns the constant r. r is copied.
func Rat(r *big.Rat) *Const { return &Const{val: new(big.Rat).Set(r)} }

// Symbol returns the variable called name.
func Symbol(name string) *Var { return &Var{Name: name} }

// Value returns a copy of the constant's value.
func (c *Const) Value() *big.Rat { return new(big.Rat).Set(c.val) }

func (c *Const) IsZero() bool { return c.val.Sign() == 0 }
func (c *Const) IsOne() bool  { return c.val.IsInt() && c.val.Num().IsInt64() && c.val.Num().Int64() == 1 }

func (c *Const) Float64() float64 {
	f, _ := c.val.Float64()
	return f
}

// Add returns a + b, folding constants and dropping additive zeros.
func Add(a, b Expr) Expr {
	ca, aok := a.(*Const)
	cb, bok := b.(*Const)
	switch {
	case aok && bok:
		return &Const{val: new(big.Rat).Add(ca.val, cb.val)}
	case aok && ca.IsZero():
		return b
	case bok && cb.IsZero():
		return a
	}
	return &Binary{Op: OpAdd, Left: a, Right: b}
}

// Sub returns a - b.
func Sub(a, b Expr) Expr {
	ca, aok := a.(*Const)
	cb, bok := b.(*Const)
	switch {
	case aok && bok:
		return &Const{val: new(big.Rat).Sub(ca.val, cb.val)}
	case bok && cb.IsZero():
		return a
	case aok && ca.IsZero():
		return Neg(b)
	}
	return &Binary{Op: OpSub, Left: a, Right: b}
}

// Neg returns -a.
func Neg(a Expr) Expr {
	if c, ok := a.(*Const); ok {
		return &Const{val: new(big.Rat).Neg(c.val)}
	}
	// -(-1*x) collapses back to x.
	if m, ok := a.(*Binary); ok && m.Op == OpMul {
		if c, ok := m.Left.(*Const); ok && c.val.Cmp(big.NewRat(-1, 1)) == 0 {
			return m.Right
		}
	}
	return &Binary{Op: OpMul, Left: Num(-1), Right: a}
}

// Mul returns a * b.
func Mul(a, b Expr) Expr {
	ca, aok := a.(*Const)
	cb, bok := b.(*Const)
	switch {
	case aok && bok:
		return &Const{val: new(big.Rat).Mul(ca.val, cb.val)}
	case (aok && ca.IsZero()) || (bok && cb.IsZero()):
		return Num(0)
	case aok && ca.IsOne():
		return b
	case bok && cb.IsOne():
		return a
	case bok:
		// Keep constants on the left so printing reads 2*x rather than x*2.
		return &Binary{Op: OpMul, Left: b, Right: a}
	}
	return &Binary{Op: OpMul, Left: a, Right: b}
}

// Div returns a / b. Division by a zero constant is kept unevaluated; the
// rational normal form rejects it.
func Div(a, b Expr) Expr {
	ca, aok := a.(*Const)
	cb, bok := b.(*Const)
	if bok && cb.IsZero() {
		return &Binary{Op: OpDiv, Left: a, Right: b}
	}
	switch {
	case aok && bok:
		return &Const{val: new(big.Rat).Quo(ca.val, cb.val)}
	case aok && ca.IsZero():
		return Num(0)
	case bok && cb.IsOne():
		return a
	}
	return &Binary{Op: OpDiv, Left: a, Right: b}
}

// maxFoldExponent bounds constant folding of c**n so that hostile input
// like 9**999999 cannot allocate unbounded big integers.
const maxFoldExponent = 64

// Pow returns base ** exp.
func Pow(base, exp Expr) Expr {
	cb, bok := base.(*Const)
	ce, eok := exp.(*Const)
	if eok {
		switch {
		case ce.IsZero():
			return Num(1)
		case ce.IsOne():
			return base
		}
	}
	if bok && cb.IsOne() {
		return Num(1)
	}
	if bok && eok && ce.val.IsInt() && ce.val.Num().IsInt64() {
		n := ce.val.Num().Int64()
		if n > 0 && n <= maxFoldExponent {
			return &Const{val: ratPow(cb.val, int(n))}
		}
		if n < 0 && n >= -maxFoldExponent && !cb.IsZero() {
			return &Const{val: new(big.Rat).Inv(ratPow(cb.val, int(-n)))}
		}
	}
	if bok && cb.IsZero() && eok && ce.val.Sign() > 0 {
		return Num(0)
	}
	return &Binary{Op: OpPow, Left: base, Right: exp}
}

func ratPow(r *big.Rat, n int) *big.Rat {
	out := new(big.Rat).SetInt64(1)
	for i := 0; i < n; i++ {
		out.Mul(out, r)
	}
	return out
}

// Contains reports whether e references the variable v.
func Contains(e Expr, v string) bool {
	switch n := e.(type) {
	case *Var:
		return n.Name == v
	case *Binary:
		return Contains(n.Left, v) || Contains(n.Right, v)
	}
	return false
}

// Substitute replaces every occurrence of v in e with value.
func Substitute(e Expr, v string, value Expr) Expr {
	switch n := e.(type) {
	case *Var:
		if n.Name == v {
			return value
		}
		return n
	case *Binary:
		return apply(n.Op, Substitute(n.Left, v, value), Substitute(n.Right, v, value))
	}
	return e
}

func apply(op Op, a, b Expr) Expr {
	switch op {
	case OpAdd:
		return Add(a, b)
	case OpSub:
		return Sub(a, b)
	case OpMul:
		return Mul(a, b)
	case OpDiv:
		return Div(a, b)
	default:
		return Pow(a, b)
	}
}

// Equal reports structural equality.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *Const:
		y, ok := b.(*Const)
		return ok && x.val.Cmp(y.val) == 0
	case *Var:
		y, ok := b.(*Var)
		return ok && x.Name == y.Name
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	}
	return false
}

// Printing precedence, loosest first. Unary minus binds tighter than * and
// looser than **, so -x**2 reads as -(x**2).
const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

func precedence(e Expr) int {
	switch n := e.(type) {
	case *Const:
		switch {
		case !n.val.IsInt():
			return precMul
		case n.val.Sign() < 0:
			return precUnary
		}
		return precAtom
	case *Binary:
		switch n.Op {
		case OpAdd, OpSub:
			return precAdd
		case OpMul:
			if c, ok := n.Left.(*Const); ok && c.val.Cmp(big.NewRat(-1, 1)) == 0 {
				return precUnary
			}
			return precMul
		case OpDiv:
			return precMul
		default:
			return precPow
		}
	}
	return precAtom
}

func (c *Const) String() string {
	if c.val.IsInt() {
		return c.val.Num().String()
	}
	return c.val.RatString()
}

func (v *Var) String() string { return v.Name }

func (b *Binary) String() string {
	var sb strings.Builder
	writeExpr(&sb, b)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	b, ok := e.(*Binary)
	if !ok {
		sb.WriteString(e.String())
		return
	}
	p := precedence(b)
	if p == precUnary {
		sb.WriteByte('-')
		writeOperand(sb, b.Right, precUnary, false)
		return
	}
	switch b.Op {
	case OpPow:
		// ** is right-associative.
		writeOperand(sb, b.Left, p, true)
		sb.WriteString("**")
		writeOperand(sb, b.Right, p, false)
		return
	case OpAdd, OpSub:
		writeOperand(sb, b.Left, p, false)
		if c, ok := b.Right.(*Const); ok && c.val.Sign() < 0 && c.val.IsInt() {
			// x + -3 reads as x - 3.
			if b.Op == OpAdd {
				sb.WriteString(" - ")
			} else {
				sb.WriteString(" + ")
			}
			sb.WriteString(new(big.Int).Abs(c.val.Num()).String())
			return
		}
		sb.WriteString(" " + b.Op.String() + " ")
	default:
		writeOperand(sb, b.Left, p, false)
		sb.WriteString(b.Op.String())
	}
	writeOperand(sb, b.Right, p, b.Op == OpSub || b.Op == OpDiv)
}

// writeOperand parenthesises child when it binds looser than the parent,
// or equally loose on the non-associative side.
func writeOperand(sb *strings.Builder, child Expr, parent int, strict bool) {
	cp := precedence(child)
	if cp < parent || (strict && cp == parent) {
		sb.WriteByte('(')
		writeExpr(sb, child)
		sb.WriteByte(')')
		return
	}
	writeExpr(sb, child)
}
