package mqtt

import "errors"

var (
	// ErrNotConnected is returned when a message is handed to a client that
	// has no broker connection.
	ErrNotConnected = errors.New("mqtt client not connected")
	// ErrPublishTimeout is returned when the broker does not confirm a
	// publish before the deadline.
	ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")
)
