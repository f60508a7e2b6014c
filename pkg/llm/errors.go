package llm

import "errors"

// ErrTimeout marks a model call that exceeded its per-call deadline.
// ErrUnavailable covers every other backend failure (network, auth, 5xx).
// Both are turn-fatal for the caller: no conversation state may be committed
// for a failed call.
var (
	ErrTimeout     = errors.New("model call timed out")
	ErrUnavailable = errors.New("model unavailable")
)
