// Package ethlb implements IEEE 802.1ag / ITU-T Y.1731 Ethernet
// Loopback (ETH-LB): a Layer-2 reachability probe between Maintenance
// Endpoints, and the Maintenance Intermediate Point reply side. Callers
// configure an LBSessionParams and hand it to Start with a SessionKind;
// the registry spawns and owns a worker goroutine for the session's
// whole life and hands back an opaque SessionID. Stop cancels it.
package ethlb

import (
	"context"
	"fmt"
	"sync"

	"github.com/daedaluz/ethlb/ethlog"
)

// SessionID is an opaque handle returned by Start. The zero value never
// refers to a live session.
type SessionID uint64

type sessionEntry struct {
	kind    SessionKind
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

type registry struct {
	mu      sync.Mutex
	next    uint64
	entries map[SessionID]*sessionEntry
}

var defaultRegistry = &registry{entries: make(map[SessionID]*sessionEntry)}

// handoff is the configuration-complete signal a worker sends back to
// Start once its setup sequence finishes or fails.
type handoff struct {
	err error
}

type workerFunc func(ctx context.Context, params *LBSessionParams, sink *ethlog.Sink, ready chan<- handoff)

// Start allocates a session of the requested kind, blocks until its
// worker finishes setup or fails, and returns a handle. An invalid kind,
// nil params, or a params validation failure is reported synchronously
// and no worker is left running; SessionID(0) is always invalid.
func Start(params *LBSessionParams, kind SessionKind) (SessionID, error) {
	if kind != KindLBM && kind != KindLBR {
		return 0, ErrInvalidSessionKind
	}
	if params == nil {
		return 0, ErrInvalidParams
	}
	cfg := params.clone()

	sink, err := ethlog.NewSink(kind.String(), cfg.LogFile, cfg.ConsoleLog, cfg.UTCLog)
	if err != nil {
		return 0, wrapErr("open log sink", err)
	}
	if err := cfg.validateAndClamp(sink.Debugf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	var run workerFunc
	switch kind {
	case KindLBM:
		run = runLBMWorker
	case KindLBR:
		run = runLBRWorker
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ready := make(chan handoff, 1)

	go func() {
		defer close(done)
		run(ctx, cfg, sink, ready)
	}()

	result := <-ready
	if result.err != nil {
		cancel()
		<-done
		return 0, result.err
	}

	defaultRegistry.mu.Lock()
	defaultRegistry.next++
	id := SessionID(defaultRegistry.next)
	defaultRegistry.entries[id] = &sessionEntry{kind: kind, cancel: cancel, done: done}
	defaultRegistry.mu.Unlock()

	return id, nil
}

// Stop requests cancellation of the session's worker and waits for it
// to exit. It is a no-op for id == 0. Calling Stop again on an id it
// already stopped returns ErrAlreadyStopped rather than re-running
// cancellation; an id Start never handed out returns ErrSessionNotFound.
func Stop(id SessionID) error {
	if id == 0 {
		return nil
	}
	defaultRegistry.mu.Lock()
	entry, ok := defaultRegistry.entries[id]
	if !ok {
		defaultRegistry.mu.Unlock()
		return ErrSessionNotFound
	}
	if entry.stopped {
		defaultRegistry.mu.Unlock()
		return ErrAlreadyStopped
	}
	entry.stopped = true
	defaultRegistry.mu.Unlock()

	entry.cancel()
	<-entry.done
	return nil
}
