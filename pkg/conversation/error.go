package conversation

import "errors"

var (
	// ErrNoAnchor is returned when a turn is appended before the conversation
	// has an anchor intent.
	ErrNoAnchor = errors.New("conversation has no anchor")

	// ErrConversationReset is returned by Commit when the conversation was
	// reset while the exchange was in flight. The finished turn is discarded.
	ErrConversationReset = errors.New("conversation was reset during exchange")

	// ErrStaleExchange is returned by Commit when another turn was committed
	// after the exchange began.
	ErrStaleExchange = errors.New("stale exchange")
)
