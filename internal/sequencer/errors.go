package sequencer

import "errors"

// Domain errors for the sequencer package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, sequencer.ErrNoSheet) {
//	    // caller forgot the template
//	}
var (
	// ErrNoSheet is returned when a SheetSequence is built without a Sheet.
	ErrNoSheet = errors.New("sequencer: sheet is required")

	// ErrZeroSlope is returned when a sequence would get a zero time slope.
	ErrZeroSlope = errors.New("sequencer: slope must be non-zero")

	// ErrNilProgram is returned when assigning a nil program to a key.
	ErrNilProgram = errors.New("sequencer: program is nil")

	// ErrNoLauncher is returned by Play when no process launcher is configured.
	ErrNoLauncher = errors.New("sequencer: no playback launcher configured")

	// ErrInvalidRepeat is returned when a sheet has a negative repeat time.
	ErrInvalidRepeat = errors.New("sequencer: repeat time must be positive")

	// ErrPlayerRunning is returned by Start when the player is already running.
	ErrPlayerRunning = errors.New("sequencer: player already running")
)
