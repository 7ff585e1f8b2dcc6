package models

import (
	"errors"
)

// Expected-condition sentinels. Callers branch on these with errors.Is;
// anything not wrapping one of them is treated as an internal failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation error")

	// ErrThreadArchived rejects message creation on archived threads.
	ErrThreadArchived = errors.New("thread is archived")

	// ErrOracleUnavailable: the completion transport failed or timed out.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrOracleMalformed: the oracle responded but the output could not be
	// parsed into the expected shape.
	ErrOracleMalformed = errors.New("oracle response malformed")
)
