package oam

import (
	"encoding/binary"
	"fmt"
)

// senderIDTLVLen is the encoded size of a Sender-ID TLV carrying a zero
// length chassis id: type(1) + length(2) + chassis_id_len(1).
const senderIDTLVLen = 4

// endTLVLen is the encoded size of the mandatory closing End TLV.
const endTLVLen = 1

// LBPDU is the Loopback Message/Reply body that follows the common
// header: a 4-byte transaction id, an optional Sender-ID TLV, and the
// terminating End TLV. IncludeSenderID controls whether the Sender-ID
// TLV is present; 802.1ag interop commonly expects it while Y.1731
// deployments often omit it, so both encodings are supported here.
type LBPDU struct {
	TransactionID   uint32
	IncludeSenderID bool
}

// Len returns the encoded size of p.
func (p LBPDU) Len() int {
	n := 4 + endTLVLen
	if p.IncludeSenderID {
		n += senderIDTLVLen
	}
	return n
}

// BuildLBPDU encodes p. The common header must be built and prepended by
// the caller; this only produces the opcode-specific body.
func BuildLBPDU(p LBPDU) []byte {
	out := make([]byte, 0, p.Len())
	var txid [4]byte
	binary.BigEndian.PutUint32(txid[:], p.TransactionID)
	out = append(out, txid[:]...)
	if p.IncludeSenderID {
		out = append(out, byte(TLVSenderID), 0x00, 0x01, 0x00)
	}
	out = append(out, byte(TLVEnd))
	return out
}

// ParseLBPDU decodes an LB PDU body. includeSenderID must match how the
// sender encoded it; this package has no way to distinguish "no TLVs
// present" from "Sender-ID TLV omitted by convention" other than being
// told which layout the session is configured for.
func ParseLBPDU(b []byte, includeSenderID bool) (LBPDU, error) {
	minLen := 4 + endTLVLen
	if includeSenderID {
		minLen += senderIDTLVLen
	}
	if len(b) < minLen {
		return LBPDU{}, fmt.Errorf("oam: LB PDU truncated: need %d bytes, got %d", minLen, len(b))
	}
	p := LBPDU{
		TransactionID:   binary.BigEndian.Uint32(b[0:4]),
		IncludeSenderID: includeSenderID,
	}
	if includeSenderID {
		if TLVType(b[4]) != TLVSenderID {
			return LBPDU{}, fmt.Errorf("oam: expected Sender-ID TLV type %d, got %d", TLVSenderID, b[4])
		}
	}
	endOffset := minLen - endTLVLen
	if TLVType(b[endOffset]) != TLVEnd {
		return LBPDU{}, fmt.Errorf("oam: missing End TLV at offset %d", endOffset)
	}
	return p, nil
}
