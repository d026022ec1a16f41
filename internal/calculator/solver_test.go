package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"PriceOptimizer/internal/parser"
	"PriceOptimizer/internal/symbolic"
)

func build(t *testing.T, cost, demand string, vars Variables) *ProfitModel {
	t.Helper()
	m, err := BuildProfitModel(parser.MustParse(cost, vars.Quantity), parser.MustParse(demand, vars.Price), vars)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return m
}

var shared = Variables{Price: "x", Quantity: "x"}

func TestSolve_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		cost       string
		demand     string
		vars       Variables
		wantPrice  float64
		wantProfit float64
		wantText   string
	}{
		{"linear demand shared variable", "10+2*x", "100-x", shared, 49, 2391, "-x**2 + 98*x - 10"},
		{"linear demand composed", "10+2*q", "100-p", DefaultVariables, 51, 2391, "-p**2 + 102*p - 210"},
		{"only one concave root", "x", "6*x-x**2-8", shared, 3, 0, "-x**3 + 6*x**2 - 9*x"},
		{"quadratic cost", "q**2", "20-p", DefaultVariables, 15, 50, "-2*p**2 + 60*p - 400"},
		{"cubic profit", "1", "12-p**2", DefaultVariables, 2, 15, "-p**3 + 12*p - 1"},
		{"irrational optimum", "1", "10-p**2", DefaultVariables, math.Sqrt(10.0 / 3), 20*math.Sqrt(10.0/3)/3 - 1, "-p**3 + 10*p - 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(context.Background(), build(t, tt.cost, tt.demand, tt.vars))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(res.OptimalPrice-tt.wantPrice) > 1e-9 {
				t.Errorf("optimal price: want %v, got %v", tt.wantPrice, res.OptimalPrice)
			}
			if math.Abs(res.MaxProfit-tt.wantProfit) > 1e-9 {
				t.Errorf("max profit: want %v, got %v", tt.wantProfit, res.MaxProfit)
			}
			if res.ProfitFunction != tt.wantText {
				t.Errorf("profit function: want %q, got %q", tt.wantText, res.ProfitFunction)
			}
			if !res.Verified {
				t.Error("want verified result")
			}
		})
	}
}

func TestSolve_StationaryAndConcave(t *testing.T) {
	m := build(t, "5+q", "100/(p+1)**2", DefaultVariables)
	res, err := Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d1, _ := symbolic.Diff(m.Profit, "p")
	d2, _ := symbolic.Diff(d1, "p")
	if res.OptimalPrice <= 0 {
		t.Errorf("want positive price, got %v", res.OptimalPrice)
	}
	if v := symbolic.Eval(d1, "p", res.OptimalPrice); math.Abs(v) > 1e-9 {
		t.Errorf("profit' at optimum: want 0, got %v", v)
	}
	if v := symbolic.Eval(d2, "p", res.OptimalPrice); v >= 0 {
		t.Errorf("profit'' at optimum: want negative, got %v", v)
	}
}

func TestSolve_NoCriticalPoint(t *testing.T) {
	tests := []struct {
		name   string
		cost   string
		demand string
	}{
		{"constant demand", "x", "10+0*x"},
		{"negative root only", "x", "-x-2"},
		{"complex roots", "x", "-x**2/3-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(context.Background(), build(t, tt.cost, tt.demand, shared))
			if !errors.Is(err, ErrNoCriticalPoint) {
				t.Errorf("want ErrNoCriticalPoint, got %v", err)
			}
		})
	}
}

func TestSolve_Fallback(t *testing.T) {
	// profit = x**3 - 3*x has a single positive stationary point, a minimum.
	res, err := Solve(context.Background(), build(t, "3*x", "x**2", shared))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verified {
		t.Error("want unverified result")
	}
	if res.OptimalPrice != 1 || res.MaxProfit != -2 {
		t.Errorf("want (1, -2), got (%v, %v)", res.OptimalPrice, res.MaxProfit)
	}
}

func TestSolve_Idempotent(t *testing.T) {
	m := build(t, "1", "12-p**2", DefaultVariables)
	a, err := Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Solve(context.Background(), m)
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestSolve_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err := Solve(ctx, build(t, "10+2*x", "100-x", shared))
	if !errors.Is(err, ErrSolveTimeout) {
		t.Errorf("want ErrSolveTimeout, got %v", err)
	}
}

func TestBuildProfitModel_Errors(t *testing.T) {
	tests := []struct {
		name string
		cost string
	}{
		{"root of a negative constant", "(0-8)**0.5*q"},
		{"zero denominator", "q/(q-q)"},
		{"zero denominator beside a fractional power", "q**0.5+q/(q-q)"},
		{"variable exponent", "2**q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildProfitModel(parser.MustParse(tt.cost, "q"), parser.MustParse("100-p", "p"), DefaultVariables)
			if !errors.Is(err, ErrModelBuild) {
				t.Errorf("want ErrModelBuild, got %v", err)
			}
		})
	}
}

func TestSolve_FractionalPowers(t *testing.T) {
	tests := []struct {
		name       string
		cost       string
		demand     string
		wantPrice  float64
		wantProfit float64
	}{
		// profit = 1000*p**-0.5 - 2000*p**-1.5, stationary where p = 6.
		{"constant elasticity demand", "2*q", "1000*p**-1.5", 6, 1000/math.Sqrt(6) - 2000/math.Pow(6, 1.5)},
		// profit = 2**0.5*(20-p)*(p-10), stationary where p = 15.
		{"irrational coefficient", "10*q", "2**0.5*(20-p)", 15, 25 * math.Sqrt2},
		// 100 - 2*p + 0.5/(100-p)**0.5 = 0 just above p = 50.
		{"square root cost", "q**0.5", "100-p", 50.0354, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := build(t, tt.cost, tt.demand, DefaultVariables)
			res, err := Solve(context.Background(), m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(res.OptimalPrice-tt.wantPrice) > 1e-3 {
				t.Errorf("optimal price: want %v, got %v", tt.wantPrice, res.OptimalPrice)
			}
			if tt.wantProfit != 0 && math.Abs(res.MaxProfit-tt.wantProfit) > 1e-6 {
				t.Errorf("max profit: want %v, got %v", tt.wantProfit, res.MaxProfit)
			}
			d1, _ := symbolic.Diff(m.Profit, "p")
			if v := symbolic.Eval(d1, "p", res.OptimalPrice); math.Abs(v) > 1e-6 {
				t.Errorf("profit' at optimum: want 0, got %v", v)
			}
			if !res.Verified {
				t.Error("want verified result")
			}
			if res.ProfitFunction == "" || res.DerivativeFunction == "" {
				t.Errorf("missing function text: %+v", res)
			}
		})
	}
}

func TestSolve_FractionalPowersNoOptimum(t *testing.T) {
	// profit = p**0.5 is increasing everywhere.
	_, err := Solve(context.Background(), build(t, "0*q", "p**-0.5", DefaultVariables))
	if !errors.Is(err, ErrNoCriticalPoint) {
		t.Errorf("want ErrNoCriticalPoint, got %v", err)
	}
}

func TestSolve_NonFiniteOptimum(t *testing.T) {
	// Exact optimum near x = 5 with profit around 2.5e321.
	demand := strings.Repeat("10**64*", 5) + "(10-x)"
	_, err := Solve(context.Background(), build(t, "x", demand, shared))
	if !errors.Is(err, ErrModelBuild) {
		t.Errorf("want ErrModelBuild, got %v", err)
	}
}

func TestSolve_HighDegreeHonoursDeadline(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("100-p")
	for k := 2; k <= 31; k++ {
		fmt.Fprintf(&sb, "+p**%d/%d", k, 7*k*k+3)
	}
	m := build(t, "q**2/3+5*q+11", sb.String(), DefaultVariables)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Solve(ctx, m)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("solve ran %v past a 200ms deadline", elapsed)
	}
	if err != nil && !errors.Is(err, ErrSolveTimeout) {
		t.Errorf("want a result or ErrSolveTimeout, got %v", err)
	}
}
