package ethlb

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"runtime"
	"time"

	"github.com/daedaluz/ethlb/ethlog"
	"github.com/daedaluz/ethlb/ifctl"
	"github.com/daedaluz/ethlb/netraw"
	"github.com/daedaluz/ethlb/oam"
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// frameSender is the narrow send-only view of *netraw.Conn that
// handleLBM needs, so tests can exercise the reply logic against a fake
// without opening a real socket.
type frameSender interface {
	SendTo(b []byte) (int, error)
}

// staggerDelay returns a uniformly random duration in [0, 1) second, the
// reply-collision stagger Y.1731 mandates for broadcast/multicast LBMs.
func staggerDelay() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(time.Second)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// runLBRWorker implements the LBR (Loopback Reply) worker: it listens
// for inbound LBMs and answers them. Its setup mirrors the LBM worker
// through opening the sockets; no timer is armed.
func runLBRWorker(ctx context.Context, params *LBSessionParams, sink *ethlog.Sink, ready chan<- handoff) {
	var rxConn, txConn *netraw.Conn
	defer func() {
		if rxConn != nil {
			rxConn.Close()
		}
		if txConn != nil {
			txConn.Close()
		}
	}()

	fail := func(err error) {
		sink.Errorf("LBR setup failed: %v", err)
		ready <- handoff{err: err}
	}

	if ok, err := ifctl.HasNetRawCapability(); err != nil || !ok {
		if err == nil {
			err = errors.New("CAP_NET_RAW not held")
		}
		fail(err)
		return
	}

	if params.Namespace != "" {
		runtime.LockOSThread()
		if err := ifctl.EnterNamespace(params.Namespace); err != nil {
			fail(err)
			return
		}
	}

	srcMAC, err := ifctl.ResolveMAC(params.IfName)
	if err != nil {
		fail(err)
		return
	}

	ifIndex, err := ifctl.ResolveIfIndex(params.IfName)
	if err != nil {
		fail(err)
		return
	}

	rxConn, err = netraw.OpenRX(ifIndex, oam.EtherTypeOAM, oam.EtherTypeVLAN)
	if err != nil {
		fail(err)
		return
	}

	txConn, err = netraw.OpenTX(ifIndex, oam.EtherTypeOAM)
	if err != nil {
		fail(err)
		return
	}

	ready <- handoff{}

	buf := make([]byte, 1600)
	for {
		rn, _, rerr := rxConn.RecvMsg(ctx, buf, 24*time.Hour)
		if rerr != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(rerr, netraw.ErrTimeout) {
				continue
			}
			sink.Errorf("poll/recv: %v", rerr)
			continue
		}
		handleLBM(buf[:rn], srcMAC, params, sink, txConn)
	}
}

// handleLBM validates one received frame as an LBM addressed to this
// MEP/MIP and, if it matches, replies with an LBR — staggered when the
// inbound frame was broadcast or multicast, as the standard requires.
func handleLBM(frame []byte, localMAC net.HardwareAddr, params *LBSessionParams, sink *ethlog.Sink, txConn frameSender) {
	dst, src, etherType, body, err := oam.ParseEthHeader(frame)
	if err != nil {
		return
	}
	if etherType == oam.EtherTypeVLAN {
		sink.Debugf("dropping VLAN-tagged frame, expected an already-stripped interface")
		return
	}
	if etherType != oam.EtherTypeOAM {
		return
	}

	isUnicast := bytes.Equal(dst, localMAC)
	isBroadcast := bytes.Equal(dst, broadcastMAC)
	isMulticast := len(dst) == 6 && dst[0]&0x01 != 0
	if !isUnicast && !isBroadcast && !isMulticast {
		return
	}

	hdr, err := oam.ParseCommonHeader(body)
	if err != nil {
		return
	}
	if hdr.Opcode != oam.OpcodeLBM {
		return
	}
	if hdr.MEGLevel != params.MEGLevel {
		sink.Debugf("Ignoring LBM with different MEG level: got %d, want %d", hdr.MEGLevel, params.MEGLevel)
		return
	}

	reply := append([]byte(nil), body...)
	reply[1] = byte(oam.OpcodeLBR)

	replyFrame, err := oam.BuildEthFrame(src, localMAC, oam.EtherTypeOAM, reply)
	if err != nil {
		sink.Errorf("build LBR frame: %v", err)
		return
	}

	if isBroadcast || isMulticast {
		time.Sleep(staggerDelay())
	}

	n, err := txConn.SendTo(replyFrame)
	if err != nil {
		sink.Errorf("sendto: %v", err)
		return
	}
	if n != len(replyFrame) {
		sink.Errorf("short write: sent %d of %d bytes", n, len(replyFrame))
	}
}
