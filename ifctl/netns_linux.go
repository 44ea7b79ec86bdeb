package ifctl

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// EnterNamespace moves the calling OS thread into the named network
// namespace under /run/netns, the same path convention "ip netns" uses.
// Callers must have already pinned the goroutine to its OS thread with
// runtime.LockOSThread and must never unlock it for the lifetime of any
// work that depends on the namespace, since Go can otherwise reschedule
// the goroutine onto a thread that never called setns.
func EnterNamespace(name string) error {
	path := "/run/netns/" + name
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ifctl: open namespace %s: %w", path, err)
	}
	defer f.Close()
	if err := unix.Setns(int(f.Fd()), unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("ifctl: setns(%s): %w", path, err)
	}
	return nil
}
