package intake

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrEmptyReply      = errors.New("reply is empty")

	// ErrSessionNotAwaiting is returned when a reply arrives for a session
	// that is not suspended on a question.
	ErrSessionNotAwaiting = errors.New("session is not awaiting a reply")

	// ErrOracleUnavailable marks transport-level oracle failures. The turn is
	// not committed and the same reply may be submitted again.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrMalformedOutput marks oracle output that does not match the requested
	// schema. The core absorbs it as "nothing extracted".
	ErrMalformedOutput = errors.New("oracle output does not match schema")

	errPhaseRegression = errors.New("phase regression")
)
