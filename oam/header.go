// Package oam implements the wire encoding for IEEE 802.1ag / ITU-T
// Y.1731 OAM PDUs used by the ETH-LB (Loopback) sub-protocol: the common
// OAM header, the Loopback Message/Reply PDU body, VLAN tagging, and the
// surrounding Ethernet DIX framing. Every function here is pure: it reads
// or writes a byte slice and never touches a socket, a clock, or a logger.
package oam

import "fmt"

// Opcode identifies the OAM PDU type carried after the common header.
// This package only builds and parses the loopback opcodes (LBM, LBR);
// the others are listed for completeness of the wire format.
type Opcode uint8

const (
	OpcodeCCM Opcode = 1
	OpcodeLBR Opcode = 2
	OpcodeLBM Opcode = 3
	OpcodeLTR Opcode = 4
	OpcodeLTM Opcode = 5
)

// TLVType enumerates the TLV types this package builds or recognizes.
type TLVType uint8

const (
	TLVEnd      TLVType = 0
	TLVSenderID TLVType = 1
	TLVData     TLVType = 3
)

// EtherTypeOAM is the ethertype reserved for CFM/OAM PDUs (802.1ag/Y.1731).
const EtherTypeOAM uint16 = 0x8902

// EtherTypeVLAN is the 802.1Q tag protocol identifier.
const EtherTypeVLAN uint16 = 0x8100

// CommonHeaderLen is the fixed size, in bytes, of the OAM common header.
const CommonHeaderLen = 4

// CommonHeader is the header shared by every CFM/OAM PDU: a one-byte
// field packing the MEG level and protocol version, followed by opcode,
// flags, and the offset to the first TLV after the opcode-specific body.
type CommonHeader struct {
	MEGLevel  uint8
	Version   uint8
	Opcode    Opcode
	Flags     uint8
	TLVOffset uint8
}

// DebugLogger receives a single formatted line; it lets callers observe
// the clamp below without this package importing a logging package.
type DebugLogger func(string)

// BuildCommonHeader packs h into a 4-byte OAM common header. A MEG level
// outside 0-7 is clamped to 0 and reported to log if non-nil.
func BuildCommonHeader(h CommonHeader, log DebugLogger) [CommonHeaderLen]byte {
	meg := h.MEGLevel
	if meg > 7 {
		if log != nil {
			log(fmt.Sprintf("oam: out of range MEG level %d, setting to 0", meg))
		}
		meg = 0
	}
	var out [CommonHeaderLen]byte
	out[0] = (meg << 5 & 0xe0) | (h.Version & 0x1f)
	out[1] = byte(h.Opcode)
	out[2] = h.Flags
	out[3] = h.TLVOffset
	return out
}

// ParseCommonHeader decodes a 4-byte OAM common header. It returns an
// error if b is shorter than CommonHeaderLen.
func ParseCommonHeader(b []byte) (CommonHeader, error) {
	if len(b) < CommonHeaderLen {
		return CommonHeader{}, fmt.Errorf("oam: common header truncated: need %d bytes, got %d", CommonHeaderLen, len(b))
	}
	return CommonHeader{
		MEGLevel:  b[0] >> 5,
		Version:   b[0] & 0x1f,
		Opcode:    Opcode(b[1]),
		Flags:     b[2],
		TLVOffset: b[3],
	}, nil
}
