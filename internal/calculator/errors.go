package calculator

import "errors"

var (
	// ErrModelBuild is returned when cost, revenue or profit has no exact
	// rational form in the price variable.
	ErrModelBuild = errors.New("model build error")
	// ErrNoCriticalPoint is returned when profit has no real stationary
	// point at a positive price.
	ErrNoCriticalPoint = errors.New("no critical point")
	// ErrSolveTimeout is returned when root isolation outlives its context.
	ErrSolveTimeout = errors.New("solve timeout")
)
