package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Queue errors
	ErrDuplicateJob     = errors.New("job with singleton key already queued")
	ErrUnknownJob       = errors.New("no handler registered for job name")
	ErrMalformedPayload = errors.New("malformed job payload")

	// Lock errors
	ErrLockHeld = errors.New("lock is held by another owner")

	// Interview / profile errors
	ErrNoFinishedSession    = errors.New("profile has no finished interview session")
	ErrTurnInProgress       = errors.New("an interview turn is already in progress for this profile")
	ErrEmptyTranscription   = errors.New("transcription returned no text")
	ErrMalformedModelOutput = errors.New("model returned malformed structured output")

	// Match errors
	ErrNoBotSide = errors.New("match has no bot-owned profile")
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable so the queue fails the job
// immediately. Precondition violations and malformed payloads go through
// here.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the non-retryable marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
