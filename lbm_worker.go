package ethlb

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"runtime"
	"time"

	"github.com/daedaluz/ethlb/ethlog"
	"github.com/daedaluz/ethlb/ifctl"
	"github.com/daedaluz/ethlb/netraw"
	"github.com/daedaluz/ethlb/oam"
)

// lbmState is the mutable runtime state a single LBM worker owns for
// its whole life; nothing here is shared with any other session.
type lbmState struct {
	txID         uint32
	missed       uint32
	replied      uint32
	mcastReplied uint32
	recovered    bool
	gotReply     bool
	customVLAN   bool
	srcMAC       net.HardwareAddr
	dstMAC       net.HardwareAddr
}

func seedTransactionID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// runLBMWorker implements the LBM worker's whole lifetime: the setup
// sequence, the Phase A / Phase B main loop, and cleanup. It returns
// when ctx is cancelled or, for a one-shot session, once the
// missed-threshold callback has fired.
func runLBMWorker(ctx context.Context, params *LBSessionParams, sink *ethlog.Sink, ready chan<- handoff) {
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
		sink.Errorf("LBM setup failed: %v", err)
		ready <- handoff{err: err}
	}

	if ok, err := ifctl.HasNetRawCapability(); err != nil || !ok {
		if err == nil {
			err = errors.New("CAP_NET_RAW not held")
		}
		fail(err)
		return
	}

	// The OS thread is pinned for the rest of this goroutine's life so
	// Go never reschedules it onto a thread that never called setns.
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

	dstMAC, err := params.destMAC()
	if err != nil {
		fail(err)
		return
	}

	txID, err := seedTransactionID()
	if err != nil {
		fail(err)
		return
	}

	state := &lbmState{txID: txID, srcMAC: srcMAC, dstMAC: dstMAC}

	// The common header never changes over the session's life, so it is
	// built once here and only the PDU is rebuilt per probe.
	hdr := oam.BuildCommonHeader(oam.CommonHeader{
		MEGLevel:  params.MEGLevel,
		Opcode:    oam.OpcodeLBM,
		TLVOffset: 4,
	}, func(line string) { sink.Debugf("%s", line) })

	isVLANSub, err := ifctl.IsVLANSubInterface(params.IfName)
	if err != nil {
		fail(err)
		return
	}
	if isVLANSub {
		nativeVLAN, err := ifctl.VLANID(params.IfName)
		if err != nil {
			fail(err)
			return
		}
		sink.Debugf("%s is a VLAN sub-interface for VLAN %d; ignoring configured VLAN/PCP to avoid double-tagging", params.IfName, nativeVLAN)
	} else if params.VLANID != 0 || params.PCP != 0 {
		state.customVLAN = true
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

	// The ticker channel is itself the single-producer / single-consumer
	// signal: no separate boolean flag is needed, the worker just
	// selects on it together with ctx.Done() between receive windows.
	interval := time.Duration(params.IntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ready <- handoff{}

	buf := make([]byte, 1600)
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !first && !state.gotReply {
			if params.Multicast {
				sink.Infof("multicast session %s: no replies this round", params.IfName)
				state.mcastReplied = 0
			} else {
				sink.Infof("no reply for LBM transaction %d, timeout", state.txID)
				state.missed++
				state.replied = 0
				state.recovered = false
			}
		}
		first = false
		state.gotReply = false

		if params.MissedThreshold > 0 && state.missed == params.MissedThreshold {
			if params.Callback != nil {
				params.Callback(Status{Code: CodeMissedThreshold, Params: params, ClientData: params.ClientData})
			}
			state.missed = 0
			if params.OneShot {
				return
			}
		}

		state.txID++
		pdu := oam.BuildLBPDU(oam.LBPDU{TransactionID: state.txID, IncludeSenderID: params.IncludeSenderID})
		body := append(append([]byte(nil), hdr[:]...), pdu...)

		var frame []byte
		if state.customVLAN {
			frame, err = oam.BuildVLANFrame(state.dstMAC, state.srcMAC, oam.EtherTypeVLAN,
				oam.VLANTag{Priority: params.PCP, DropEligible: params.DropEligible, ID: params.VLANID},
				oam.EtherTypeOAM, body)
		} else {
			frame, err = oam.BuildEthFrame(state.dstMAC, state.srcMAC, oam.EtherTypeOAM, body)
		}
		if err != nil {
			sink.Errorf("build LBM frame: %v", err)
			continue
		}

		n, sendErr := txConn.SendTo(frame)
		if sendErr != nil {
			sink.Errorf("sendto: %v", sendErr)
		} else if n != len(frame) {
			sink.Errorf("short write: sent %d of %d bytes", n, len(frame))
		}

		timeSent := time.Now()

		for {
			remaining := interval - time.Since(timeSent)
			if remaining <= 0 {
				break
			}
			rn, oob, rerr := rxConn.RecvMsg(ctx, buf, remaining)
			if rerr != nil {
				if errors.Is(rerr, netraw.ErrTimeout) {
					break
				}
				if ctx.Err() != nil {
					return
				}
				sink.Errorf("poll/recv: %v", rerr)
				continue
			}
			timeReceived := time.Now()
			matched := state.handleReply(buf[:rn], oob, params, sink, timeSent, timeReceived)
			if matched && !params.Multicast {
				break
			}
		}
	}
}

// handleReply validates one received frame against the matching rules
// for an LBR and updates counters/callbacks on a match. It reports
// whether the frame counted as a matching reply.
func (s *lbmState) handleReply(frame, oob []byte, params *LBSessionParams, sink *ethlog.Sink, timeSent, timeReceived time.Time) bool {
	dst, src, etherType, rest, err := oam.ParseEthHeader(frame)
	if err != nil {
		return false
	}
	if !bytes.Equal(dst, s.srcMAC) {
		return false
	}

	body := rest
	if etherType == oam.EtherTypeVLAN {
		if !s.customVLAN {
			return false
		}
		tag, inner, payload, perr := oam.ParseVLANTag(rest)
		if perr != nil {
			return false
		}
		if tag.ID != params.VLANID {
			return false
		}
		etherType = inner
		body = payload
	} else if tci, tagged, aerr := ifctl.ParseAuxdata(oob); aerr == nil && tagged {
		// The TCI carries PCP/DEI in its top bits; only the VID part is
		// compared against the configured id.
		if !s.customVLAN || tci&0x0fff != params.VLANID {
			return false
		}
	}

	if etherType != oam.EtherTypeOAM {
		return false
	}
	hdr, err := oam.ParseCommonHeader(body)
	if err != nil {
		return false
	}
	if hdr.Opcode != oam.OpcodeLBR {
		return false
	}
	if hdr.MEGLevel != params.MEGLevel {
		return false
	}
	pdu, err := oam.ParseLBPDU(body[oam.CommonHeaderLen:], params.IncludeSenderID)
	if err != nil {
		return false
	}
	if pdu.TransactionID != s.txID {
		return false
	}

	rtt := timeReceived.Sub(timeSent)
	sink.Infof("Got LBR from %s, transaction %d, time: %d ms", src, pdu.TransactionID, rtt.Milliseconds())

	s.gotReply = true
	s.missed = 0
	s.replied++
	if params.Multicast {
		s.mcastReplied++
	}
	if !s.recovered && params.RecoveryThreshold > 0 && s.replied == params.RecoveryThreshold {
		s.recovered = true
		if params.Callback != nil {
			params.Callback(Status{Code: CodeRecoverThreshold, Params: params, ClientData: params.ClientData})
		}
	}
	return true
}
