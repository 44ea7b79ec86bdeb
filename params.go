package ethlb

import (
	"fmt"
	"net"
)

// SessionKind selects which worker Start spawns for a session.
type SessionKind int

const (
	// KindLBM drives periodic Loopback Message transmission and reply
	// matching (the MEP side of ETH-LB).
	KindLBM SessionKind = iota
	// KindLBR listens for and answers Loopback Messages (the MIP side).
	KindLBR
)

func (k SessionKind) String() string {
	switch k {
	case KindLBM:
		return "LBM"
	case KindLBR:
		return "LBR"
	default:
		return fmt.Sprintf("SessionKind(%d)", int(k))
	}
}

// CallbackCode identifies why a Callback fired.
type CallbackCode int

const (
	// CodeDefault is never delivered on its own; it is the zero value
	// of CallbackCode, reserved so a zero Status is visibly unset.
	CodeDefault CallbackCode = iota
	// CodeMissedThreshold fires when the missed-reply counter reaches
	// LBSessionParams.MissedThreshold.
	CodeMissedThreshold
	// CodeRecoverThreshold fires when the consecutive-reply counter
	// reaches LBSessionParams.RecoveryThreshold while the session is not
	// marked recovered: once after start-up, and again after each miss.
	CodeRecoverThreshold
)

// Status is delivered to a session's Callback on a reachability
// transition.
type Status struct {
	Code       CallbackCode
	Params     *LBSessionParams
	ClientData any
}

// Callback is invoked by the LBM worker on a reachability transition. It
// runs on the worker goroutine and must not block or call back into the
// registry (Start/Stop) for this session, or it will deadlock.
type Callback func(Status)

// multicastMinIntervalMS is the standard-mandated floor for multicast
// discovery: sessions probing a broadcast domain back off to avoid
// flooding it with LBMs.
const multicastMinIntervalMS = 5000

// LBSessionParams configures one session. It is validated and clamped
// once, by Start; the copy the worker holds afterwards is immutable
// except for the documented DiscoverPeers field.
type LBSessionParams struct {
	IfName string

	// DestMAC is the textual unicast peer address, ignored when
	// Multicast is true.
	DestMAC string

	// DiscoverPeers is accepted for forward compatibility with the
	// LB-discover wire scaffolding but is not a supported SessionKind;
	// Start rejects a non-empty DiscoverPeers list outright.
	DiscoverPeers []string

	IntervalMS        uint32
	MissedThreshold   uint32
	RecoveryThreshold uint32
	OneShot           bool
	Callback          Callback

	Namespace string

	MEGLevel     uint8
	VLANID       uint16
	PCP          uint8
	DropEligible bool
	Multicast    bool

	// IncludeSenderID controls whether built LB PDUs carry the
	// Sender-ID TLV; 802.1ag peers commonly expect it, Y.1731 peers
	// often omit it. Both sides of a session must agree. Defaults to
	// true via NewLBSessionParams.
	IncludeSenderID bool

	ConsoleLog bool
	UTCLog     bool
	LogFile    string

	ClientData any
}

// NewLBSessionParams returns params with the documented defaults
// (IncludeSenderID true, IntervalMS 1000) applied, then opts in order.
func NewLBSessionParams(ifName string, opts ...Option) *LBSessionParams {
	p := &LBSessionParams{
		IfName:            ifName,
		IntervalMS:        1000,
		MissedThreshold:   2,
		RecoveryThreshold: 2,
		IncludeSenderID:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option mutates an LBSessionParams under construction.
type Option func(*LBSessionParams)

func WithDestMAC(mac string) Option { return func(p *LBSessionParams) { p.DestMAC = mac } }
func WithInterval(ms uint32) Option { return func(p *LBSessionParams) { p.IntervalMS = ms } }
func WithThresholds(missed, recovery uint32) Option {
	return func(p *LBSessionParams) {
		p.MissedThreshold = missed
		p.RecoveryThreshold = recovery
	}
}
func WithOneShot(oneShot bool) Option   { return func(p *LBSessionParams) { p.OneShot = oneShot } }
func WithCallback(cb Callback) Option   { return func(p *LBSessionParams) { p.Callback = cb } }
func WithNamespace(ns string) Option    { return func(p *LBSessionParams) { p.Namespace = ns } }
func WithMEGLevel(level uint8) Option   { return func(p *LBSessionParams) { p.MEGLevel = level } }
func WithMulticast(multicast bool) Option {
	return func(p *LBSessionParams) { p.Multicast = multicast }
}
func WithVLAN(id uint16, pcp uint8, dropEligible bool) Option {
	return func(p *LBSessionParams) {
		p.VLANID = id
		p.PCP = pcp
		p.DropEligible = dropEligible
	}
}
func WithLogging(logFile string, console, utc bool) Option {
	return func(p *LBSessionParams) {
		p.LogFile = logFile
		p.ConsoleLog = console
		p.UTCLog = utc
	}
}
func WithClientData(v any) Option { return func(p *LBSessionParams) { p.ClientData = v } }

// clone returns a deep-enough copy a worker can own outright; the
// worker never touches the caller's original value again.
func (p *LBSessionParams) clone() *LBSessionParams {
	cp := *p
	if p.DiscoverPeers != nil {
		cp.DiscoverPeers = append([]string(nil), p.DiscoverPeers...)
	}
	return &cp
}

// validateAndClamp enforces §3's invariants in place and returns an
// error for anything that cannot be silently fixed up (bad MAC string,
// missing interface name). Clampable fields (MEG level, PCP) are fixed
// with a debug log line through logf when non-nil.
func (p *LBSessionParams) validateAndClamp(logf func(string, ...any)) error {
	if p.IfName == "" {
		return fmt.Errorf("ethlb: interface name is required")
	}
	if len(p.DiscoverPeers) > 0 {
		return fmt.Errorf("ethlb: discover-mode peer lists are not a supported session kind")
	}
	if p.MEGLevel > 7 {
		if logf != nil {
			logf("MEG level %d out of range, clamping to 0", p.MEGLevel)
		}
		p.MEGLevel = 0
	}
	if p.PCP > 7 {
		if logf != nil {
			logf("PCP %d out of range, clamping to 0", p.PCP)
		}
		p.PCP = 0
	}
	if p.VLANID > 4095 {
		p.VLANID &= 0x0fff
	}
	if p.Multicast {
		p.MissedThreshold = 0
		p.RecoveryThreshold = 0
		p.Callback = nil
		p.OneShot = false
		p.VLANID = 0
		p.PCP = 0
		if p.IntervalMS < multicastMinIntervalMS {
			p.IntervalMS = multicastMinIntervalMS
		}
	} else if p.DestMAC != "" {
		if _, err := net.ParseMAC(p.DestMAC); err != nil {
			return fmt.Errorf("ethlb: invalid destination MAC %q: %w", p.DestMAC, err)
		}
	}
	if p.IntervalMS == 0 {
		return fmt.Errorf("ethlb: interval must be non-zero")
	}
	return nil
}

// destMAC resolves the configured destination: broadcast for multicast
// sessions, the parsed DestMAC otherwise.
func (p *LBSessionParams) destMAC() (net.HardwareAddr, error) {
	if p.Multicast {
		return net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, nil
	}
	return net.ParseMAC(p.DestMAC)
}
