package netraw

import "github.com/daedaluz/ethlb/internal/wraperr"

// wrapErr wraps e with a short description; a thin alias over the
// shared wraperr.Wrap, the same error shape the root package uses.
func wrapErr(msg string, e error) error {
	return wraperr.Wrap(msg, e)
}

var (
	// ErrClosed is returned by any operation on a Conn after Close.
	ErrClosed = wraperr.New("netraw: socket already closed")
	// ErrTimeout is returned by RecvMsg when no frame arrives before
	// the requested timeout elapses.
	ErrTimeout = wraperr.New("netraw: receive timed out")
)
