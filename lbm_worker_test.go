package ethlb

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daedaluz/ethlb/ethlog"
	"github.com/daedaluz/ethlb/oam"
)

func mustHWAddr(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func testSink(t *testing.T) *ethlog.Sink {
	t.Helper()
	sink, err := ethlog.NewSink(t.Name(), filepath.Join(t.TempDir(), "session.log"), false, false)
	require.NoError(t, err)
	return sink
}

// lbrBody builds an LBR PDU body (common header + LB PDU), the shape
// handleReply expects after the Ethernet/VLAN header is stripped off.
func lbrBody(meg uint8, txid uint32, includeSenderID bool) []byte {
	hdr := oam.BuildCommonHeader(oam.CommonHeader{MEGLevel: meg, Opcode: oam.OpcodeLBR, TLVOffset: 4}, nil)
	pdu := oam.BuildLBPDU(oam.LBPDU{TransactionID: txid, IncludeSenderID: includeSenderID})
	return append(append([]byte(nil), hdr[:]...), pdu...)
}

func TestHandleReplyMatchesAndIncrementsReplied(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, dstMAC: peerMAC, txID: 5}
	params := NewLBSessionParams("veth0", WithMEGLevel(0))

	frame, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 5, true))
	require.NoError(t, err)

	matched := state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now())
	require.True(t, matched)
	require.EqualValues(t, 0, state.missed)
	require.EqualValues(t, 1, state.replied)
	require.True(t, state.gotReply)
}

func TestHandleReplyFiresRecoverCallbackAtThreshold(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, dstMAC: peerMAC, txID: 1, missed: 3}

	var got Status
	fired := 0
	params := NewLBSessionParams("veth0",
		WithThresholds(2, 1),
		WithCallback(func(s Status) { fired++; got = s }),
	)
	sink := testSink(t)

	frame, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.True(t, state.handleReply(frame, nil, params, sink, time.Now(), time.Now()))
	require.Equal(t, 1, fired)
	require.Equal(t, CodeRecoverThreshold, got.Code)
	require.True(t, state.recovered)

	// A second matching reply must not fire the callback again: recover
	// only signals on the edge, not on every reply past threshold.
	state.txID = 2
	frame2, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 2, true))
	require.NoError(t, err)
	require.True(t, state.handleReply(frame2, nil, params, sink, time.Now(), time.Now()))
	require.Equal(t, 1, fired)
}

func TestHandleReplyDropsWrongDestination(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	otherMAC := mustHWAddr(t, "02:00:00:00:00:ff")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1}
	params := NewLBSessionParams("veth0")

	frame, err := oam.BuildEthFrame(otherMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.False(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
	require.EqualValues(t, 0, state.replied)
}

func TestHandleReplyDropsMEGLevelMismatch(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1}
	params := NewLBSessionParams("veth0", WithMEGLevel(0))

	frame, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(1, 1, true))
	require.NoError(t, err)

	require.False(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
}

func TestHandleReplyDropsStaleTransactionID(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 9}
	params := NewLBSessionParams("veth0")

	frame, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 8, true))
	require.NoError(t, err)

	require.False(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
}

func TestHandleReplyDropsTaggedWhenCustomVLANDisabled(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1, customVLAN: false}
	params := NewLBSessionParams("veth0", WithVLAN(100, 0, false))

	tag := oam.VLANTag{ID: 100}
	frame, err := oam.BuildVLANFrame(localMAC, peerMAC, oam.EtherTypeVLAN, tag, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.False(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
}

func TestHandleReplyMatchesCustomVLANFrame(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1, customVLAN: true}
	params := NewLBSessionParams("veth0", WithVLAN(100, 3, false))
	// VLAN 100/PCP is forced onto params outside validateAndClamp in
	// this unit test, so set it directly rather than going through
	// validateAndClamp's multicast-only clearing path.
	params.VLANID = 100

	tag := oam.VLANTag{ID: 100, Priority: 3}
	frame, err := oam.BuildVLANFrame(localMAC, peerMAC, oam.EtherTypeVLAN, tag, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.True(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
	require.EqualValues(t, 1, state.replied)
}

func TestHandleReplyDropsMismatchedVLANID(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1, customVLAN: true}
	params := NewLBSessionParams("veth0")
	params.VLANID = 100

	tag := oam.VLANTag{ID: 200}
	frame, err := oam.BuildVLANFrame(localMAC, peerMAC, oam.EtherTypeVLAN, tag, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.False(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
}

func TestHandleReplyMulticastTracksSeparateCounter(t *testing.T) {
	localMAC := mustHWAddr(t, "02:00:00:00:00:01")
	peerMAC := mustHWAddr(t, "02:00:00:00:00:02")
	state := &lbmState{srcMAC: localMAC, txID: 1}
	params := NewLBSessionParams("veth0", WithMulticast(true))
	require.NoError(t, params.validateAndClamp(nil))

	frame, err := oam.BuildEthFrame(localMAC, peerMAC, oam.EtherTypeOAM, lbrBody(0, 1, true))
	require.NoError(t, err)

	require.True(t, state.handleReply(frame, nil, params, testSink(t), time.Now(), time.Now()))
	require.EqualValues(t, 1, state.mcastReplied)
	// Multicast sessions never arm recovery/missed thresholds.
	require.False(t, state.recovered)
}

func TestSeedTransactionIDIsNonDeterministic(t *testing.T) {
	a, err := seedTransactionID()
	require.NoError(t, err)
	b, err := seedTransactionID()
	require.NoError(t, err)
	require.NotEqual(t, a, b, "two draws from crypto/rand collided; seeding is broken")
}
