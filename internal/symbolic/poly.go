package symbolic

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Poly is a dense polynomial with exact rational coefficients; index i holds
// the coefficient of x**i. The zero polynomial has no coefficients and a
// normalised Poly never ends in a zero coefficient.
type Poly []*big.Rat

// PolyOf builds a normalised polynomial from integer coefficients, lowest
// degree first.
func PolyOf(coeffs ...int64) Poly {
	p := make(Poly, len(coeffs))
	for i, c := range coeffs {
		p[i] = new(big.Rat).SetInt64(c)
	}
	return p.trim()
}

func constPoly(r *big.Rat) Poly {
	return Poly{new(big.Rat).Set(r)}.trim()
}

func monomial(deg int) Poly {
	p := make(Poly, deg+1)
	for i := range p {
		p[i] = new(big.Rat)
	}
	p[deg].SetInt64(1)
	return p
}

func (p Poly) trim() Poly {
	n := len(p)
	for n > 0 && p[n-1].Sign() == 0 {
		n--
	}
	return p[:n]
}

// Degree returns the degree, or -1 for the zero polynomial.
func (p Poly) Degree() int { return len(p) - 1 }

func (p Poly) IsZero() bool { return len(p) == 0 }

// Coeff returns a copy of the coefficient of x**i.
func (p Poly) Coeff(i int) *big.Rat {
	if i < 0 || i >= len(p) {
		return new(big.Rat)
	}
	return new(big.Rat).Set(p[i])
}

func (p Poly) lead() *big.Rat { return p[len(p)-1] }

func (p Poly) Add(q Poly) Poly {
	n := max(len(p), len(q))
	out := make(Poly, n)
	for i := range out {
		out[i] = new(big.Rat).Add(p.Coeff(i), q.Coeff(i))
	}
	return out.trim()
}

func (p Poly) Sub(q Poly) Poly {
	n := max(len(p), len(q))
	out := make(Poly, n)
	for i := range out {
		out[i] = new(big.Rat).Sub(p.Coeff(i), q.Coeff(i))
	}
	return out.trim()
}

func (p Poly) Mul(q Poly) Poly {
	if p.IsZero() || q.IsZero() {
		return nil
	}
	out := make(Poly, len(p)+len(q)-1)
	for i := range out {
		out[i] = new(big.Rat)
	}
	t := new(big.Rat)
	for i, a := range p {
		for j, b := range q {
			out[i+j].Add(out[i+j], t.Mul(a, b))
		}
	}
	return out.trim()
}

// Scale multiplies every coefficient by r.
func (p Poly) Scale(r *big.Rat) Poly {
	out := make(Poly, len(p))
	for i, c := range p {
		out[i] = new(big.Rat).Mul(c, r)
	}
	return out.trim()
}

func (p Poly) Pow(n int) Poly {
	out := PolyOf(1)
	for i := 0; i < n; i++ {
		out = out.Mul(p)
	}
	return out
}

// Deriv returns dp/dx.
func (p Poly) Deriv() Poly {
	if len(p) <= 1 {
		return nil
	}
	out := make(Poly, len(p)-1)
	for i := 1; i < len(p); i++ {
		out[i-1] = new(big.Rat).Mul(p[i], new(big.Rat).SetInt64(int64(i)))
	}
	return out.trim()
}

// DivMod returns quotient and remainder of p / q. q must be non-zero.
func (p Poly) DivMod(q Poly) (quo, rem Poly) {
	rem = append(Poly(nil), p...)
	for i := range rem {
		rem[i] = new(big.Rat).Set(rem[i])
	}
	if len(p) < len(q) {
		return nil, rem
	}
	quo = make(Poly, len(p)-len(q)+1)
	for i := range quo {
		quo[i] = new(big.Rat)
	}
	lead := q.lead()
	t := new(big.Rat)
	for len(rem) >= len(q) && !rem.IsZero() {
		shift := len(rem) - len(q)
		f := new(big.Rat).Quo(rem.lead(), lead)
		quo[shift].Set(f)
		for j, c := range q {
			rem[shift+j].Sub(rem[shift+j], t.Mul(f, c))
		}
		rem = rem[:len(rem)-1].trim()
	}
	return quo.trim(), rem
}

// Monic scales p so that its leading coefficient is one.
func (p Poly) Monic() Poly {
	if p.IsZero() {
		return nil
	}
	return p.Scale(new(big.Rat).Inv(p.lead()))
}

// primitive scales p by a positive rational so that its coefficients are
// coprime integers. Signs are preserved.
func (p Poly) primitive() Poly {
	if p.IsZero() {
		return nil
	}
	lcm := big.NewInt(1)
	g := new(big.Int)
	for _, c := range p {
		d := c.Denom()
		g.GCD(nil, nil, lcm, d)
		lcm.Mul(lcm, new(big.Int).Quo(d, g))
	}
	ints := make([]*big.Int, len(p))
	content := new(big.Int)
	for i, c := range p {
		n := new(big.Int).Quo(lcm, c.Denom())
		ints[i] = n.Mul(n, c.Num())
		content.GCD(nil, nil, content, ints[i])
	}
	out := make(Poly, len(p))
	for i, n := range ints {
		out[i] = new(big.Rat).SetInt(n.Quo(n, content))
	}
	return out
}

// GCD returns the monic greatest common divisor of p and q.
func GCD(p, q Poly) Poly {
	g, _ := gcd(context.Background(), p, q)
	return g
}

// gcd runs Euclid on primitive remainders so coefficient size stays bounded
// by the inputs rather than compounding step over step.
func gcd(ctx context.Context, p, q Poly) (Poly, error) {
	a, b := p.primitive(), q.primitive()
	for !b.IsZero() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polynomial gcd: %w", err)
		}
		_, r := a.DivMod(b)
		a, b = b, r.primitive()
	}
	return a.Monic(), nil
}

// SquareFree returns p with every repeated factor reduced to multiplicity
// one. The roots are unchanged.
func (p Poly) SquareFree() Poly {
	q, _ := p.squareFree(context.Background())
	return q
}

func (p Poly) squareFree(ctx context.Context) (Poly, error) {
	if p.Degree() < 1 {
		return p, nil
	}
	g, err := gcd(ctx, p, p.Deriv())
	if err != nil {
		return nil, err
	}
	if g.Degree() < 1 {
		return p, nil
	}
	q, _ := p.DivMod(g)
	return q, nil
}

// EvalRat evaluates p at x exactly.
func (p Poly) EvalRat(x *big.Rat) *big.Rat {
	acc := new(big.Rat)
	for i := len(p) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, p[i])
	}
	return acc
}

// EvalFloat evaluates p at x with Horner's scheme in double precision.
func (p Poly) EvalFloat(x float64) float64 {
	acc := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		c, _ := p[i].Float64()
		acc = acc*x + c
	}
	return acc
}

// CauchyBound returns a rational strictly greater than the modulus of every
// root of p: 1 + max|a_i / a_n|.
func (p Poly) CauchyBound() *big.Rat {
	bound := new(big.Rat)
	if p.Degree() < 1 {
		return bound.SetInt64(1)
	}
	lead := p.lead()
	t := new(big.Rat)
	for _, c := range p[:len(p)-1] {
		t.Quo(c, lead)
		t.Abs(t)
		if t.Cmp(bound) > 0 {
			bound.Set(t)
		}
	}
	return bound.Add(bound, big.NewRat(1, 1))
}

// String prints p in descending powers of v, e.g. "-x**2 + 98*x - 10".
func (p Poly) String(v string) string {
	if p.IsZero() {
		return "0"
	}
	var sb strings.Builder
	first := true
	for i := len(p) - 1; i >= 0; i-- {
		c := p[i]
		if c.Sign() == 0 {
			continue
		}
		abs := new(big.Rat).Abs(c)
		switch {
		case first && c.Sign() < 0:
			sb.WriteByte('-')
		case !first && c.Sign() < 0:
			sb.WriteString(" - ")
		case !first:
			sb.WriteString(" + ")
		}
		first = false
		sb.WriteString(formatTerm(abs, v, i))
	}
	return sb.String()
}

func formatTerm(abs *big.Rat, v string, deg int) string {
	coeff := abs.RatString()
	if deg == 0 {
		return coeff
	}
	pow := v
	if deg > 1 {
		pow = v + "**" + itoa(deg)
	}
	if abs.Cmp(big.NewRat(1, 1)) == 0 {
		return pow
	}
	return coeff + "*" + pow
}

func itoa(n int) string { return big.NewInt(int64(n)).String() }

// signAt returns the sign of p(x). Integer polynomials are evaluated on the
// homogenised form sum a_i n**i d**(k-i), which has the sign of p(n/d) for
// d > 0 and needs no rational normalisation.
func (p Poly) signAt(x *big.Rat) int {
	for _, c := range p {
		if !c.IsInt() {
			return p.EvalRat(x).Sign()
		}
	}
	n, d := x.Num(), x.Denom()
	acc := new(big.Int)
	dpow := big.NewInt(1)
	t := new(big.Int)
	for i := len(p) - 1; i >= 0; i-- {
		acc.Mul(acc, n)
		acc.Add(acc, t.Mul(p[i].Num(), dpow))
		dpow.Mul(dpow, d)
	}
	return acc.Sign()
}

// ratFloat converts r to the nearest float64, mapping overflow to ±Inf.
func ratFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	if math.IsNaN(f) {
		return 0
	}
	return f
}
