package cli

import "errors"

// Errors returned by session commands.
var (
	ErrMissingArgs       = errors.New("missing arguments")
	ErrTooManyArgs       = errors.New("too many arguments")
	ErrUnknownDefKind    = errors.New("unknown definition kind (want method, getset, member or attr)")
	ErrUnknownField      = errors.New("unknown field type")
	ErrInvalidNumber     = errors.New("invalid number")
	ErrUnterminatedQuote = errors.New("unterminated quote")
)
