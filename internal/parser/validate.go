// Package parser turns function text such as "10 + 2*q" into a symbolic
// expression bound to one free variable.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrValidation marks function text rejected by the syntactic check.
	ErrValidation = errors.New("validation error")
	// ErrParse marks function text that passed validation but does not
	// match the grammar.
	ErrParse = errors.New("parse error")
)

// CheckVariable reports whether name can be used as a bound variable: a
// single lowercase ASCII letter.
func CheckVariable(name string) error {
	if len(name) != 1 || name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("%w: variable %q must be a single lowercase letter", ErrValidation, name)
	}
	return nil
}

// Validate performs the syntactic check on function text: non-empty,
// restricted to digits, the variable, + - * / ( ) . and whitespace, must
// reference the variable, and parentheses must balance.
func Validate(text, variable string) error {
	if err := CheckVariable(variable); err != nil {
		return err
	}
	clean := strings.Map(func(r rune) rune {
		if isSpace(r) {
			return -1
		}
		return r
	}, text)
	if clean == "" {
		return fmt.Errorf("%w: function is empty", ErrValidation)
	}
	if !strings.Contains(clean, variable) {
		return fmt.Errorf("%w: function must contain the variable %q", ErrValidation, variable)
	}
	if !charset(variable).MatchString(clean) {
		return fmt.Errorf("%w: function contains invalid characters; use only digits, %q, +, -, *, /, ** and parentheses",
			ErrValidation, variable)
	}
	depth := 0
	for _, r := range clean {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return fmt.Errorf("%w: unbalanced parentheses", ErrValidation)
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced parentheses", ErrValidation)
	}
	return nil
}

// isSpace is the whitespace the lexer skips. Other Unicode spaces are
// invalid characters.
func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func charset(variable string) *regexp.Regexp {
	return regexp.MustCompile(`^[0-9+\-*/().` + regexp.QuoteMeta(variable) + `]+$`)
}
