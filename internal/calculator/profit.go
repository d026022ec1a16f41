// Package calculator builds the profit model of a single product and finds
// the price that maximizes it.
package calculator

import (
	"errors"
	"fmt"

	"PriceOptimizer/internal/symbolic"
)

// Variables names the price and quantity symbols. When both are equal the
// cost function is taken to be already expressed in price.
type Variables struct {
	Price    string
	Quantity string
}

// DefaultVariables binds demand to p and cost to q.
var DefaultVariables = Variables{Price: "p", Quantity: "q"}

// Shared reports whether cost and demand use the same symbol.
func (v Variables) Shared() bool { return v.Price == v.Quantity }

// ProfitModel holds cost, revenue and profit as expressions in Price.
type ProfitModel struct {
	Price   string
	Cost    symbolic.Expr
	Revenue symbolic.Expr
	Profit  symbolic.Expr
}

// BuildProfitModel composes revenue = price * demand and
// profit = revenue - cost(demand). cost is in the quantity variable and
// demand in the price variable. Parts with fractional powers have no exact
// rational form and are accepted when they evaluate as real functions.
func BuildProfitModel(cost, demand symbolic.Expr, vars Variables) (*ProfitModel, error) {
	if vars.Price == "" || vars.Quantity == "" {
		return nil, fmt.Errorf("%w: price and quantity variables are required", ErrModelBuild)
	}
	costInPrice := cost
	if !vars.Shared() {
		costInPrice = symbolic.Substitute(cost, vars.Quantity, demand)
	}
	revenue := symbolic.Mul(symbolic.Symbol(vars.Price), demand)
	m := &ProfitModel{
		Price:   vars.Price,
		Cost:    costInPrice,
		Revenue: revenue,
		Profit:  symbolic.Sub(revenue, costInPrice),
	}
	for _, part := range []struct {
		name string
		expr symbolic.Expr
	}{
		{"cost", m.Cost},
		{"revenue", m.Revenue},
		{"profit", m.Profit},
	} {
		_, err := symbolic.Rational(part.expr, vars.Price)
		if errors.Is(err, symbolic.ErrFractionalExponent) {
			err = symbolic.CheckNumeric(part.expr, vars.Price)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelBuild, part.name, err)
		}
	}
	return m, nil
}
