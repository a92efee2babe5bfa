package game

import "errors"

// Sentinel errors for caller defects. They are never produced by a running tick.
var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidEffect    = errors.New("invalid effect")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidConfig    = errors.New("invalid game config")
)
