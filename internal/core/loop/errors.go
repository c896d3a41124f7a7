package loop

import "errors"

var (
	// ErrLoopRunning is returned when Run or Drain is called while the loop
	// is already being consumed.
	ErrLoopRunning = errors.New("loop: already running")

	// ErrLoopStopped is returned by Call once Run has returned, including
	// for calls whose job was still queued when it did.
	ErrLoopStopped = errors.New("loop: stopped")
)
