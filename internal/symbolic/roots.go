package symbolic

import (
	"context"
	"fmt"
	"math/big"
)

// Root is an isolated real root. Exact is set when the root is rational and
// was verified by exact evaluation; Value is always the nearest float64.
type Root struct {
	Value float64
	Exact *big.Rat
}

const (
	maxRefineSteps = 1100
	maxSnapDenom   = 1_000_000
)

// PositiveRoots returns the distinct real roots of p that are strictly
// greater than zero, in increasing order.
func PositiveRoots(ctx context.Context, p Poly) ([]Root, error) {
	return RealRoots(ctx, p, new(big.Rat), p.CauchyBound())
}

// RealRoots returns the distinct real roots of p in (lo, hi], in increasing
// order. Realness is decided by an exact Sturm count; floating point only
// enters when the isolated root is refined for reporting. The zero
// polynomial has no isolated roots.
func RealRoots(ctx context.Context, p Poly, lo, hi *big.Rat) ([]Root, error) {
	if p.Degree() < 1 || lo.Cmp(hi) >= 0 {
		return nil, nil
	}
	sq, err := p.squareFree(ctx)
	if err != nil {
		return nil, fmt.Errorf("square-free part: %w", err)
	}
	sq = sq.Monic()
	if sq.Degree() == 1 {
		r := new(big.Rat).Neg(sq[0])
		if r.Cmp(lo) > 0 && r.Cmp(hi) <= 0 {
			return []Root{exactRoot(r)}, nil
		}
		return nil, nil
	}
	seq, err := sturmSequence(ctx, sq)
	if err != nil {
		return nil, err
	}
	iso := &isolator{ctx: ctx, p: seq[0], seq: seq}
	n := iso.variations(lo) - iso.variations(hi)
	if err := iso.isolate(lo, hi, n); err != nil {
		return nil, err
	}
	return iso.roots, nil
}

func exactRoot(r *big.Rat) Root {
	return Root{Value: ratFloat(r), Exact: new(big.Rat).Set(r)}
}

// sturmSequence returns p, p', -rem(p, p'), ... ending at the last non-zero
// remainder. Every member is scaled to a primitive integer polynomial by a
// positive factor, which keeps the sign pattern intact.
func sturmSequence(ctx context.Context, p Poly) ([]Poly, error) {
	seq := []Poly{p.primitive(), p.Deriv().primitive()}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sturm sequence: %w", err)
		}
		a, b := seq[len(seq)-2], seq[len(seq)-1]
		if b.Degree() < 1 {
			return seq, nil
		}
		_, r := a.DivMod(b)
		if r.IsZero() {
			return seq, nil
		}
		seq = append(seq, r.primitive().Scale(big.NewRat(-1, 1)))
	}
}

type isolator struct {
	ctx   context.Context
	p     Poly
	seq   []Poly
	roots []Root
}

// variations counts sign changes of the Sturm sequence at x, skipping zeros.
func (s *isolator) variations(x *big.Rat) int {
	count, last := 0, 0
	for _, q := range s.seq {
		sg := q.signAt(x)
		if sg == 0 {
			continue
		}
		if last != 0 && sg != last {
			count++
		}
		last = sg
	}
	return count
}

// isolate splits (a, b], which holds n distinct roots, until each piece holds
// one.
func (s *isolator) isolate(a, b *big.Rat, n int) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("isolate roots: %w", err)
	}
	switch {
	case n <= 0:
		return nil
	case n == 1:
		r, err := s.refine(new(big.Rat).Set(a), new(big.Rat).Set(b))
		if err != nil {
			return err
		}
		s.roots = append(s.roots, r)
		return nil
	}
	mid := midpoint(a, b)
	left := s.variations(a) - s.variations(mid)
	if err := s.isolate(a, mid, left); err != nil {
		return err
	}
	return s.isolate(mid, b, n-left)
}

// refine narrows (a, b], known to hold exactly one simple root, until its
// endpoints agree in double precision.
func (s *isolator) refine(a, b *big.Rat) (Root, error) {
	if s.p.signAt(b) == 0 {
		return exactRoot(b), nil
	}
	// A root sitting on the open end breaks sign bisection; step away from
	// it using the Sturm count.
	for s.p.signAt(a) == 0 {
		if err := s.ctx.Err(); err != nil {
			return Root{}, fmt.Errorf("refine root: %w", err)
		}
		mid := midpoint(a, b)
		if s.p.signAt(mid) == 0 {
			return exactRoot(mid), nil
		}
		if s.variations(a)-s.variations(mid) == 1 {
			b = mid
		} else {
			a = mid
		}
	}
	sa := s.p.signAt(a)
	for i := 0; i < maxRefineSteps; i++ {
		if i%16 == 0 {
			if err := s.ctx.Err(); err != nil {
				return Root{}, fmt.Errorf("refine root: %w", err)
			}
		}
		if ratFloat(a) == ratFloat(b) {
			break
		}
		mid := midpoint(a, b)
		sm := s.p.signAt(mid)
		if sm == 0 {
			return exactRoot(mid), nil
		}
		if sm == sa {
			a = mid
		} else {
			b = mid
		}
	}
	mid := midpoint(a, b)
	if r := s.snap(mid, a, b); r != nil {
		return exactRoot(r), nil
	}
	return Root{Value: ratFloat(mid)}, nil
}

// snap walks the continued-fraction convergents of x and returns the first
// one inside (a, b] that is an exact root.
func (s *isolator) snap(x, a, b *big.Rat) *big.Rat {
	limit := big.NewInt(maxSnapDenom)
	h1, h2 := big.NewInt(1), big.NewInt(0)
	k1, k2 := big.NewInt(0), big.NewInt(1)
	rest := new(big.Rat).Set(x)
	for {
		q := new(big.Int).Div(rest.Num(), rest.Denom())
		h := new(big.Int).Add(new(big.Int).Mul(q, h1), h2)
		k := new(big.Int).Add(new(big.Int).Mul(q, k1), k2)
		if k.Cmp(limit) > 0 {
			return nil
		}
		c := new(big.Rat).SetFrac(h, k)
		if c.Cmp(a) > 0 && c.Cmp(b) <= 0 && s.p.signAt(c) == 0 {
			return c
		}
		frac := new(big.Rat).Sub(rest, new(big.Rat).SetInt(q))
		if frac.Sign() == 0 {
			return nil
		}
		rest.Inv(frac)
		h1, h2 = h, h1
		k1, k2 = k, k1
	}
}

func midpoint(a, b *big.Rat) *big.Rat {
	m := new(big.Rat).Add(a, b)
	return m.Quo(m, big.NewRat(2, 1))
}
