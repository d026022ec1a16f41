package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/symbolic"
)

// candidate is a positive stationary point of profit.
type candidate struct {
	root    symbolic.Root
	profit  float64
	concave bool
}

// Solve returns the price that maximizes m.Profit.
//
// Stationary points come from the numerator of profit' in exact rational
// form; a point counts only when the Sturm count proves it real and it lies
// strictly above zero. Among candidates with profit'' < 0 the most
// profitable wins, ties going to the lower price. When none is concave the
// most profitable candidate is returned with Verified unset.
//
// Models with fractional powers are solved numerically by solveNumeric. A
// result that does not fit in a float64 is rejected with ErrModelBuild.
func Solve(ctx context.Context, m *ProfitModel) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", ErrSolveTimeout, err)
	}
	v := m.Price
	profit, err := symbolic.Rational(m.Profit, v)
	if errors.Is(err, symbolic.ErrFractionalExponent) {
		return finite(solveNumeric(ctx, m))
	}
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: profit: %v", ErrModelBuild, err)
	}
	first, err := symbolic.Diff(m.Profit, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", ErrModelBuild, err)
	}
	d1, err := symbolic.Rational(first, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: first derivative: %v", ErrModelBuild, err)
	}

	roots, err := symbolic.PositiveRoots(ctx, d1.Num)
	if err != nil {
		return model.Result{}, interrupted(err)
	}
	roots = dropPoles(roots, d1)
	if len(roots) == 0 {
		return model.Result{}, fmt.Errorf("%w: %s has no positive real root", ErrNoCriticalPoint, d1.String(v))
	}

	second, err := symbolic.Diff(first, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", ErrModelBuild, err)
	}
	d2, err := symbolic.Rational(second, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: second derivative: %v", ErrModelBuild, err)
	}

	cands := make([]candidate, 0, len(roots))
	for _, r := range roots {
		cands = append(cands, candidate{
			root:    r,
			profit:  evalAt(profit, r),
			concave: evalAt(d2, r) < 0,
		})
	}

	best, verified := pick(cands, true), true
	if best == nil {
		best, verified = pick(cands, false), false
	}
	return finite(model.Result{
		OptimalPrice:       best.root.Value,
		MaxProfit:          best.profit,
		ProfitFunction:     profit.String(v),
		DerivativeFunction: d1.String(v),
		Verified:           verified,
	}, nil)
}

// finite rejects optima that overflow double precision.
func finite(res model.Result, err error) (model.Result, error) {
	if err != nil {
		return res, err
	}
	for _, f := range []float64{res.OptimalPrice, res.MaxProfit} {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return model.Result{}, fmt.Errorf("%w: optimum (%v, %v) is not a finite number",
				ErrModelBuild, res.OptimalPrice, res.MaxProfit)
		}
	}
	return res, nil
}

// interrupted maps context errors to ErrSolveTimeout.
func interrupted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSolveTimeout, err)
	}
	return err
}

// pick returns the most profitable candidate, optionally among the concave
// ones only. Candidates arrive in increasing price order, so a strict
// comparison keeps the lower price on ties.
func pick(cands []candidate, concaveOnly bool) *candidate {
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if concaveOnly && !c.concave {
			continue
		}
		if best == nil || c.profit > best.profit {
			best = c
		}
	}
	return best
}

// dropPoles removes roots at which the denominator vanishes.
func dropPoles(roots []symbolic.Root, f symbolic.RatFunc) []symbolic.Root {
	out := roots[:0]
	for _, r := range roots {
		if r.Exact != nil {
			if f.Den.EvalRat(r.Exact).Sign() == 0 {
				continue
			}
		} else if f.Den.EvalFloat(r.Value) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// evalAt evaluates f exactly at rational roots and in double precision
// otherwise.
func evalAt(f symbolic.RatFunc, r symbolic.Root) float64 {
	if r.Exact != nil {
		if v, err := f.EvalRat(r.Exact); err == nil {
			out, _ := v.Float64()
			return out
		}
	}
	return f.EvalFloat(r.Value)
}
