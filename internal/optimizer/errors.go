package optimizer

import (
	"errors"
	"net/http"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/chart"
	"PriceOptimizer/internal/identity"
	"PriceOptimizer/internal/parser"
)

var (
	// ErrNotFound is returned when the owner has no record with the name.
	ErrNotFound = errors.New("optimization not found")
	// ErrNameTaken is returned when the owner already has a record with the name.
	ErrNameTaken = errors.New("optimization name already in use")
	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error codes exposed to API clients.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeParse           = "PARSE_ERROR"
	CodeModelBuild      = "MODEL_BUILD_ERROR"
	CodeNoCriticalPoint = "NO_CRITICAL_POINT"
	CodeSolveTimeout    = "SOLVE_TIMEOUT"
	CodeRender          = "RENDER_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeNameTaken       = "NAME_TAKEN"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInternal        = "INTERNAL"
)

var codes = []struct {
	err    error
	code   string
	status int
}{
	{parser.ErrValidation, CodeValidation, http.StatusUnprocessableEntity},
	{parser.ErrParse, CodeParse, http.StatusUnprocessableEntity},
	{calculator.ErrModelBuild, CodeModelBuild, http.StatusUnprocessableEntity},
	{calculator.ErrNoCriticalPoint, CodeNoCriticalPoint, http.StatusUnprocessableEntity},
	{calculator.ErrSolveTimeout, CodeSolveTimeout, http.StatusGatewayTimeout},
	{chart.ErrRender, CodeRender, http.StatusInternalServerError},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrNameTaken, CodeNameTaken, http.StatusBadRequest},
	{identity.ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest},
}

// Code maps err to a stable error code and HTTP status.
func Code(err error) (string, int) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}
