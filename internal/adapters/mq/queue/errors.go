package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull = errors.New("resolution queue is full")
	ErrClosed    = errors.New("resolution queue is closed")
	ErrBadJob    = errors.New("malformed resolution job")
)
