package timeexpr

import "errors"

// Domain errors for the timeexpr package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, timeexpr.ErrExpression) {
//	    // reject the plan entry that carried the expression
//	}
var (
	// ErrExpression is returned for unparseable syntax or a symbolic anchor
	// that cannot be resolved against the supplied variables.
	ErrExpression = errors.New("timeexpr: invalid expression")
)
