package process

import "errors"

// ErrNoBinary is returned when the launcher has no player binary configured.
var ErrNoBinary = errors.New("process: no player binary configured")
