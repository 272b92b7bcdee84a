package output

import "errors"

var (
	// ErrInvalidModule is returned when a parameter is staged without a module name.
	ErrInvalidModule = errors.New("output: module name required")

	// ErrInvalidParameter is returned when a parameter name is empty.
	ErrInvalidParameter = errors.New("output: parameter name required")
)
