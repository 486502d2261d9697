package application

import "errors"

var (
	// ErrNoProcedure rejects chat interaction before a breakdown succeeded.
	ErrNoProcedure = errors.New("no procedure available, process instructions first")

	// ErrUnknownSession reports a session ID the store does not know.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNothingToReplay rejects replay when no assistant reply is pending.
	ErrNothingToReplay = errors.New("no spoken reply available to replay")

	// ErrNotRecording rejects a stop request without an active recording.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrStaleResult marks a completion whose session moved on (procedure
	// replaced) while the call was in flight. The result is discarded.
	ErrStaleResult = errors.New("result discarded, session state changed while the request was in flight")
)
