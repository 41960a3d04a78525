package tracker

import "errors"

// ErrEmptyIntent is returned when an intent is empty or only whitespace.
var ErrEmptyIntent = errors.New("intent must not be empty")
