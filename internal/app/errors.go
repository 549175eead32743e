package service

import "errors"

// Sentinel kinds the HTTP layer maps to status codes.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("relay queue full")
	ErrStopped      = errors.New("service stopped")
)
