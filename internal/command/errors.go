package command

import "errors"

var (
	// ErrUnsupportedOperation is returned for operations not exposed as RPCs.
	ErrUnsupportedOperation = errors.New("command: unsupported operation")

	// ErrMissingArgument is returned when an operation needs an argument.
	ErrMissingArgument = errors.New("command: missing argument")
)
