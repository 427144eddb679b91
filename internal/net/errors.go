package net

import "errors"

var (
	// ErrProtocolViolation marks any frame or message the client cannot
	// accept: a malformed frame, an unknown kind, a payload of the wrong
	// shape, or a kind that cannot occur at this point in the session.
	// Sessions do not recover from it.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrFrameTooLarge is returned when an encoded message does not fit in
	// one frame. Messages are never truncated.
	ErrFrameTooLarge = errors.New("message does not fit in a frame")

	// ErrConnectFailed is returned once every connection attempt failed.
	ErrConnectFailed = errors.New("failed to connect")

	// ErrNotAttempted is returned when the dialer is configured with no
	// attempts at all.
	ErrNotAttempted = errors.New("no connection attempt made")

	// ErrInputClosed is returned when the terminal input ends while a
	// prompt is waiting for a line.
	ErrInputClosed = errors.New("terminal input closed")
)
