package errors

import "errors"

// Sentinel errors shared across services. Handlers map these onto
// HTTP statuses; services wrap them with context via fmt.Errorf %w.
var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrStaleReference        = errors.New("stale reference")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrStoreUnavailable      = errors.New("result store unavailable")
	ErrCompile               = errors.New("filter compile failed")
)
