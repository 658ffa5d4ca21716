package services

import "errors"

// Failure taxonomy for the request path. Controllers map these onto HTTP
// statuses with errors.Is; everything else is an internal error.
var (
	// ErrMachineUnauthorized covers unknown, unapproved and inactive
	// machines alike so callers cannot probe which machines exist.
	ErrMachineUnauthorized = errors.New("unknown or inactive machine")

	ErrInvalidSignature = errors.New("invalid signature")

	ErrVersionNotFound = errors.New("unknown distribution or version")

	// ErrDuplicateResult is the replay rejection. Kept as its own kind, a
	// conflict, not folded into the authentication failures.
	ErrDuplicateResult = errors.New("duplicate uuid")
)

// ValidationError is a malformed-request failure raised before the intake
// state machine starts.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
