package ethlb

import "github.com/daedaluz/ethlb/internal/wraperr"

// wrapErr wraps e with a short description; it is a thin alias over the
// shared wraperr.Wrap so every error returned from this package carries
// the same shape.
func wrapErr(msg string, e error) error {
	return wraperr.Wrap(msg, e)
}

var (
	// ErrInvalidSessionKind is returned by Start when the requested
	// SessionKind is neither KindLBM nor KindLBR.
	ErrInvalidSessionKind = wraperr.New("invalid OAM session kind")
	// ErrInvalidParams is returned by Start when LBSessionParams fails
	// validation (bad MAC, missing interface, zero interval, ...).
	ErrInvalidParams = wraperr.New("invalid session parameters")
	// ErrSessionNotFound is returned by Stop for an id never handed out.
	ErrSessionNotFound = wraperr.New("unknown session id")
	// ErrAlreadyStopped is returned by Stop for a session already
	// stopped by a prior call.
	ErrAlreadyStopped = wraperr.New("session already stopped")
)
