package calculator

import (
	"context"
	"fmt"
	"math"

	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/symbolic"
)

// Scan grid for models without an exact rational form. Prices outside
// [scanLow, scanHigh] are not searched.
const (
	scanLow        = 1e-9
	scanHigh       = 1e9
	scanPoints     = 8000
	maxBisectSteps = 128
)

// solveNumeric finds stationary points by scanning profit' for sign changes
// on a log-spaced price grid and bisecting each bracket to double
// precision. Candidate selection matches the exact path.
func solveNumeric(ctx context.Context, m *ProfitModel) (model.Result, error) {
	v := m.Price
	first, err := symbolic.Diff(m.Profit, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", ErrModelBuild, err)
	}
	second, err := symbolic.Diff(first, v)
	if err != nil {
		return model.Result{}, fmt.Errorf("%w: %v", ErrModelBuild, err)
	}

	roots, err := scanRoots(ctx, func(x float64) float64 { return symbolic.Eval(first, v, x) })
	if err != nil {
		return model.Result{}, interrupted(err)
	}
	cands := make([]candidate, 0, len(roots))
	for _, x := range roots {
		p := symbolic.Eval(m.Profit, v, x)
		if math.IsNaN(p) {
			continue
		}
		cands = append(cands, candidate{
			root:    symbolic.Root{Value: x},
			profit:  p,
			concave: symbolic.Eval(second, v, x) < 0,
		})
	}
	if len(cands) == 0 {
		return model.Result{}, fmt.Errorf("%w: %s changes sign nowhere in (%g, %g]",
			ErrNoCriticalPoint, first, scanLow, scanHigh)
	}

	best, verified := pick(cands, true), true
	if best == nil {
		best, verified = pick(cands, false), false
	}
	return model.Result{
		OptimalPrice:       best.root.Value,
		MaxProfit:          best.profit,
		ProfitFunction:     m.Profit.String(),
		DerivativeFunction: first.String(),
		Verified:           verified,
	}, nil
}

// scanRoots returns the zeros of f on the scan grid in increasing order.
// Points where f is not a real number are skipped.
func scanRoots(ctx context.Context, f func(float64) float64) ([]float64, error) {
	step := math.Log(scanHigh/scanLow) / (scanPoints - 1)
	var roots []float64
	x0, f0 := scanLow, f(scanLow)
	if f0 == 0 {
		roots = append(roots, x0)
	}
	for i := 1; i < scanPoints; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("scan derivative: %w", err)
			}
		}
		x1 := scanLow * math.Exp(step*float64(i))
		f1 := f(x1)
		switch {
		case f1 == 0:
			roots = append(roots, x1)
		case isReal(f0) && isReal(f1) && f0 != 0 && (f0 < 0) != (f1 < 0):
			if r, ok := bisect(f, x0, x1, f0); ok {
				roots = append(roots, r)
			}
		}
		x0, f0 = x1, f1
	}
	return roots, nil
}

// bisect narrows a sign change of f on [a, b] until the endpoints are
// adjacent floats. A bracket around a pole is reported as no root: there
// |f| grows as the bracket shrinks.
func bisect(f func(float64) float64, a, b, fa float64) (float64, bool) {
	fb := f(b)
	bound := math.Min(math.Abs(fa), math.Abs(fb))
	for i := 0; i < maxBisectSteps; i++ {
		mid := a + (b-a)/2
		if mid <= a || mid >= b {
			break
		}
		fm := f(mid)
		switch {
		case fm == 0:
			return mid, true
		case !isReal(fm):
			return 0, false
		case (fm < 0) == (fa < 0):
			a, fa = mid, fm
		default:
			b, fb = mid, fm
		}
	}
	if math.Min(math.Abs(fa), math.Abs(fb)) > bound {
		return 0, false
	}
	if math.Abs(fa) <= math.Abs(fb) {
		return a, true
	}
	return b, true
}

func isReal(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
