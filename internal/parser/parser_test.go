package parser

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		variable string
		wantErr  bool
	}{
		{"simple", "10 + 2*q", "q", false},
		{"power", "(100 - p)**2 / 4", "p", false},
		{"decimal", "0.5*x + .25", "x", false},
		{"empty", "   ", "x", true},
		{"missing variable", "10 + 2", "x", true},
		{"foreign letter", "10 + 2*y + x", "x", true},
		{"function call", "sin(x)", "x", true},
		{"uppercase variable", "10 + X", "x", true},
		{"unbalanced open", "2*(x+1", "x", true},
		{"closing first", ")x(", "x", true},
		{"bad variable", "10 + xy", "xy", true},
		{"tab and newline", "10\t+\n2*q", "q", false},
		{"non-breaking space", "10\u00a0+ 2*q", "q", true},
		{"ideographic space", "2*q\u3000+1", "q", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.text, tt.variable)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("want ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_WhitespaceMatchesLexer(t *testing.T) {
	for _, text := range []string{"10 + 2*q", "10\r\n+2*q", "10\u00a0+2*q", "10\u2003+2*q", "10\v+2*q"} {
		if Validate(text, "q") != nil {
			continue
		}
		if _, err := Parse(text, "q"); err != nil {
			t.Errorf("%q passed validation but failed to parse: %v", text, err)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"10+2*x", "10 + 2*x"},
		{"100 - x", "100 - x"},
		{"-x**2", "-x**2"},
		{"2**-1*x", "1/2*x"},
		{"x**2**2", "x**4"},
		{"2.5*x", "5/2*x"},
		{"(x+1)*(x-1)", "(x + 1)*(x - 1)"},
		{"10+0*x", "10"},
		{"+x", "x"},
		{"6*x-x**2-8", "6*x - x**2 - 8"},
		{"x/(x-2)", "x/(x - 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := Parse(tt.text, "x")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := e.String(); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"2*(x+1",
		"x+",
		"2x",
		"x***2",
		"1.2.3*x",
		"x)",
		"y+1",
		"10",
		".",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			if _, err := Parse(text, "x"); !errors.Is(err, ErrParse) {
				t.Errorf("want ErrParse, got %v", err)
			}
		})
	}
}
