package llm

import "errors"

// ErrCompletion is returned when the completion service cannot be reached or
// fails mid-stream. The exchange that triggered it must be abandoned.
var ErrCompletion = errors.New("completion failed")
