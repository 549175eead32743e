package ignore

import "errors"

// ErrEmptyKey is returned when a side of the pair normalizes to nothing.
var ErrEmptyKey = errors.New("ignore requires non-empty raider and target keys")
