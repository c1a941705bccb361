package evictsync

import "errors"

// ErrInvalidConfig is returned when the node configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")
