package tasks

import "errors"

var (
	ErrNotFound           = errors.New("task not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTerminal           = errors.New("task already finished")
	ErrQueueNotConfigured = errors.New("task queue not configured")
)
