package auth

import "errors"

// Principal token format errors. All wrap ErrFormat.
var (
	ErrFormat          = errors.New("auth: malformed principal token")
	ErrInvalidEncoding = fmtError("invalid encoding")
	ErrInvalidFormat   = fmtError("expected {kind}|{key}")
	ErrUnknownKind     = fmtError("unknown principal kind")
)

// Account errors.
var (
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrUserNotFound           = errors.New("auth: user not found")
	ErrEmailExists            = errors.New("auth: email already exists")
	ErrServiceAccountNotFound = errors.New("auth: service account not found")
	ErrAPIKeyExists           = errors.New("auth: API key already exists")
	ErrTokenInvalid           = errors.New("auth: invalid token")
)

// formatError is a format error with its own message that still matches ErrFormat.
type formatError struct{ msg string }

func fmtError(msg string) error { return &formatError{msg: msg} }

func (e *formatError) Error() string { return "auth: " + e.msg }

func (e *formatError) Is(target error) bool { return target == ErrFormat }
