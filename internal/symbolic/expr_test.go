package symbolic

import (
	"math"
	"math/big"
	"testing"
)

var x = Symbol("x")

func TestString_Precedence(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"sum", Add(Num(10), Mul(Num(2), x)), "10 + 2*x"},
		{"negated power", Neg(Pow(x, Num(2))), "-x**2"},
		{"power of negative", Pow(Num(-3), x), "(-3)**x"},
		{"sub of sum", Sub(x, Add(x, Num(1))), "x - (x + 1)"},
		{"product of sum", Mul(x, Sub(Num(100), x)), "x*(100 - x)"},
		{"negative constant", Add(x, Num(-3)), "x - 3"},
		{"right assoc power", Pow(x, Pow(Num(2), x)), "x**2**x"},
		{"left nested power", Pow(Pow(x, Num(2)), x), "(x**2)**x"},
		{"quotient of quotient", Div(x, Div(x, Num(2))), "x/(x/2)"},
		{"fraction", Mul(Rat(big.NewRat(1, 2)), x), "1/2*x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.String(); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConstructors_Fold(t *testing.T) {
	if got := Add(Num(2), Num(3)).String(); got != "5" {
		t.Errorf("want 5, got %s", got)
	}
	if got := Mul(x, Num(0)); !Equal(got, Num(0)) {
		t.Errorf("x*0: want 0, got %s", got)
	}
	if got := Pow(x, Num(1)); got != Expr(x) {
		t.Errorf("x**1: want x, got %s", got)
	}
	if got := Pow(x, Num(0)); !Equal(got, Num(1)) {
		t.Errorf("x**0: want 1, got %s", got)
	}
	if got := Neg(Neg(x)); got != Expr(x) {
		t.Errorf("--x: want x, got %s", got)
	}
	if got := Pow(Num(2), Num(-2)).String(); got != "1/4" {
		t.Errorf("2**-2: want 1/4, got %s", got)
	}
	// Division by a zero constant is kept so that later stages can reject it.
	if _, ok := Div(x, Num(0)).(*Binary); !ok {
		t.Errorf("x/0 should stay unevaluated")
	}
}

func TestSubstitute_DoesNotMutate(t *testing.T) {
	q := Symbol("q")
	cost := Add(Num(10), Mul(Num(2), q))
	before := cost.String()
	got := Substitute(cost, "q", Sub(Num(100), x))
	if got.String() != "10 + 2*(100 - x)" {
		t.Errorf("want 10 + 2*(100 - x), got %s", got)
	}
	if cost.String() != before {
		t.Errorf("substitute mutated input: %s", cost)
	}
}

func TestDiff_Rules(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		at   float64
		want float64
	}{
		{"polynomial", Sub(Mul(x, Sub(Num(100), x)), Add(Num(10), Mul(Num(2), x))), 10, 78},
		{"quotient", Div(Num(1), x), 2, -0.25},
		{"power", Pow(x, Num(3)), 2, 12},
		{"negative power", Pow(x, Num(-2)), 1, -2},
		{"constant", Num(7), 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Diff(tt.expr, "x")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := Eval(d, "x", tt.at); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("want %v, got %v (%s)", tt.want, got, d)
			}
		})
	}
}

func TestDiff_VariableExponent(t *testing.T) {
	if _, err := Diff(Pow(Num(2), x), "x"); err == nil {
		t.Error("expected error for variable exponent")
	}
}

func TestEval_UnboundVariable(t *testing.T) {
	if got := Eval(Symbol("y"), "x", 1); !math.IsNaN(got) {
		t.Errorf("want NaN, got %v", got)
	}
}
