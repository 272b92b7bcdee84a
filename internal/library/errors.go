package library

import "errors"

// Domain errors for the library package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, library.ErrShowNotFound) {
//	    // handle not found case
//	}
var (
	// ErrShowNotFound is returned when a show ID or slug does not exist.
	ErrShowNotFound = errors.New("show: not found")

	// ErrShowExists is returned when creating a show whose ID or slug is taken.
	ErrShowExists = errors.New("show: already exists")

	// ErrInvalidShow is returned when show validation fails.
	ErrInvalidShow = errors.New("show: invalid")

	// ErrInvalidCue is returned when a cue is malformed.
	ErrInvalidCue = errors.New("show: invalid cue")

	// ErrInvalidName is returned when a show name is empty or too long.
	ErrInvalidName = errors.New("show: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("show: invalid slug")

	// ErrShowCycle is returned when shows nest each other in a loop or
	// deeper than the configured limit.
	ErrShowCycle = errors.New("show: nesting cycle or too deep")

	// ErrPlaybackNotFound is returned when a playback ID does not exist.
	ErrPlaybackNotFound = errors.New("show: playback not found")
)
