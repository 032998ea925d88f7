package capture

import "errors"

var (
	// ErrClosed is returned when using a source after Close.
	ErrClosed = errors.New("capture: source closed")

	// ErrNoClient is returned when no capture client connected in time.
	ErrNoClient = errors.New("capture: no capture client connected")

	// ErrNoSession is returned when emitting without an open session.
	ErrNoSession = errors.New("capture: no active session")
)
