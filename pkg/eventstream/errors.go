package eventstream

import "errors"

var (
	// ErrNilTurnEvent indicates a nil turn event payload was provided to a publisher.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrNilDecisionEvent indicates a nil decision event payload was provided to a publisher.
	ErrNilDecisionEvent = errors.New("nil decision event")

	// ErrPublisherClosed is returned by publishers used after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
