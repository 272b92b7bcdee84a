package control

import "errors"

// Sentinel errors for control operations.
var (
	// ErrInvalidKey is returned when a player key is empty, too long, or
	// cannot be used as a single MQTT topic level.
	ErrInvalidKey = errors.New("control: invalid player key")

	// ErrInvalidCommand is returned for a control message that cannot be parsed.
	ErrInvalidCommand = errors.New("control: invalid command")
)
