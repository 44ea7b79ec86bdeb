// Package netraw owns the raw AF_PACKET socket lifecycle the LBM and
// LBR workers run over: opening bound RX/TX sockets, attaching a BPF
// filter, and a poll-with-timeout receive that a context can interrupt.
// Conn pairs one bound fd with a close-once flag and a cancellable poll,
// so the worker state machines read as plain state machines over an
// interface rather than inlined syscalls.
package netraw

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// ethPAll is ETH_P_ALL from linux/if_ether.h.
const ethPAll = 0x0003

func htons(h uint16) uint16 { return h<<8 | h>>8 }

// Conn is one raw socket bound to a single interface, either RX or TX.
type Conn struct {
	fd      int
	ifIndex int
	evfd    int
	closed  atomic.Bool
}

func openSocket(ifIndex int, protocol uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(protocol)))
	if err != nil {
		return -1, fmt.Errorf("netraw: socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{Protocol: htons(protocol), Ifindex: ifIndex}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netraw: bind ifindex %d: %w", ifIndex, err)
	}
	return fd, nil
}

func newConn(fd, ifIndex int) (*Conn, error) {
	evfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netraw: eventfd: %w", err)
	}
	return &Conn{fd: fd, ifIndex: ifIndex, evfd: evfd}, nil
}

// OpenRX opens a receive socket bound to ifIndex, enables PACKET_AUXDATA
// (so a VLAN tag the kernel stripped can be recovered via
// ifctl.ParseAuxdata) and attaches a BPF filter accepting only the given
// ethertypes.
func OpenRX(ifIndex int, etherTypes ...uint16) (*Conn, error) {
	fd, err := openSocket(ifIndex, ethPAll)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_AUXDATA, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netraw: enable PACKET_AUXDATA: %w", err)
	}
	prog, err := acceptEtherTypes(etherTypes...)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := attachFilter(fd, prog); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return newConn(fd, ifIndex)
}

// OpenTX opens a transmit-only socket bound to ifIndex for protocol.
func OpenTX(ifIndex int, protocol uint16) (*Conn, error) {
	fd, err := openSocket(ifIndex, protocol)
	if err != nil {
		return nil, err
	}
	return newConn(fd, ifIndex)
}

// SendTo transmits a fully built Ethernet frame; b must already include
// the destination MAC, ethertype, and any VLAN tag.
func (c *Conn) SendTo(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	sa := &unix.SockaddrLinklayer{Ifindex: c.ifIndex}
	if err := unix.Sendto(c.fd, b, 0, sa); err != nil {
		return 0, wrapErr("sendto", err)
	}
	return len(b), nil
}

// pollTimeoutMs converts the time remaining until deadline, clamped by
// ctx's own deadline when it has one, into milliseconds for unix.Poll.
func pollTimeoutMs(ctx context.Context, deadline time.Time) int {
	remaining := time.Until(deadline)
	if dl, ok := ctx.Deadline(); ok {
		if r := time.Until(dl); r < remaining {
			remaining = r
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining / time.Millisecond)
}

// RecvMsg blocks until a frame arrives, timeout elapses, or ctx is
// cancelled, whichever comes first. oob holds the PACKET_AUXDATA control
// message, if the kernel attached one.
func (c *Conn) RecvMsg(ctx context.Context, buf []byte, timeout time.Duration) (n int, oob []byte, err error) {
	if c.closed.Load() {
		return 0, nil, ErrClosed
	}

	// Drain any stale cancellation signal left by a previous call whose
	// ctx was cancelled independently of Close.
	var drain [8]byte
	unix.Read(c.evfd, drain[:])

	cancelDone := make(chan struct{})
	defer close(cancelDone)
	go func() {
		select {
		case <-ctx.Done():
			var one [8]byte
			binary.LittleEndian.PutUint64(one[:], 1)
			unix.Write(c.evfd, one[:])
		case <-cancelDone:
		}
	}()

	deadline := time.Now().Add(timeout)
	for {
		ms := pollTimeoutMs(ctx, deadline)
		fds := []unix.PollFd{
			{Fd: int32(c.fd), Events: unix.POLLIN},
			{Fd: int32(c.evfd), Events: unix.POLLIN},
		}
		pn, perr := unix.Poll(fds, ms)
		if perr == unix.EINTR {
			continue
		}
		if perr != nil {
			return 0, nil, wrapErr("poll", perr)
		}
		if pn == 0 {
			return 0, nil, ErrTimeout
		}
		if fds[1].Revents&unix.POLLIN != 0 {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			return 0, nil, ErrClosed
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			oobBuf := make([]byte, 256)
			rn, oobn, _, _, rerr := unix.Recvmsg(c.fd, buf, oobBuf, 0)
			if rerr != nil {
				return 0, nil, wrapErr("recvmsg", rerr)
			}
			return rn, oobBuf[:oobn], nil
		}
	}
}

// Close shuts the socket down. Safe to call concurrently with RecvMsg:
// the eventfd write unblocks any poll already in flight.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	unix.Write(c.evfd, one[:])
	unix.Close(c.evfd)
	return unix.Close(c.fd)
}
