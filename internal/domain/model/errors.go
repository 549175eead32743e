package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidMonth  = errors.New("invalid month, want YYYY-MM")
	ErrUnknownSource = errors.New("unknown raid source")
)
