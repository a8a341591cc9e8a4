package delayqueue

import "errors"

var (
	// ErrPollFailed wraps a failure of the index range query. It is the only
	// error Pop returns and is safe to retry.
	ErrPollFailed = errors.New("delayqueue: poll failed")

	// ErrEmptyTopic is returned by New when no topic is given.
	ErrEmptyTopic = errors.New("delayqueue: topic is required")

	// ErrEmptyID is returned by Cancel when no id is given.
	ErrEmptyID = errors.New("delayqueue: id is required")
)
