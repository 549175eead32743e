package relay

import "errors"

// Sentinel kinds for consumer setup and decoding.
var (
	ErrConfig = errors.New("invalid relay config")
	ErrDecode = errors.New("decode relay message")
)
