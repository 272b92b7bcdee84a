package labels

import "errors"

var (
	// ErrMalformedLine is returned for a line without a parseable start time.
	ErrMalformedLine = errors.New("labels: malformed line")

	// ErrTrackNotFound is returned when a named track is not loaded.
	ErrTrackNotFound = errors.New("labels: track not found")
)
