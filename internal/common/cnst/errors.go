package cnst

import "errors"

var (
	// ErrNotReceiver is returned when a notifier is not configured to receive updates
	ErrNotReceiver = errors.New("notifier cannot receive updates")
	// ErrNotSender is returned when a notifier is not configured to send updates
	ErrNotSender = errors.New("notifier cannot send updates")
	// ErrEmptySessionID is returned when an operation is called without a session id
	ErrEmptySessionID = errors.New("empty session id")
	// ErrInvalidRange is returned for an analytics range outside 1h, 6h, 24h and 7d
	ErrInvalidRange = errors.New("invalid analytics range")
)
