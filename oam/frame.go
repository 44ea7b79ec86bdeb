package oam

import (
	"encoding/binary"
	"fmt"
	"net"
)

// EthHeaderLen is the size of an untagged Ethernet DIX header.
const EthHeaderLen = 14

// VLANHeaderLen is the size of an 802.1Q-tagged Ethernet header: the
// usual 12 address bytes, the 4-byte VLAN tag, and the 2-byte inner
// ethertype.
const VLANHeaderLen = 18

// VLANTag is an 802.1Q tag: priority code point, drop-eligible bit, and
// a 12-bit VLAN identifier, packed into a single 16-bit field.
type VLANTag struct {
	Priority     uint8
	DropEligible bool
	ID           uint16
}

func (v VLANTag) pack() uint16 {
	u := uint16(v.Priority&0x7) << 13
	if v.DropEligible {
		u |= 1 << 12
	}
	u |= v.ID & 0x0fff
	return u
}

// unpackVLANTag reverses VLANTag.pack.
func unpackVLANTag(u uint16) VLANTag {
	return VLANTag{
		Priority:     uint8(u >> 13 & 0x7),
		DropEligible: u&(1<<12) != 0,
		ID:           u & 0x0fff,
	}
}

// BuildEthFrame prepends an untagged Ethernet DIX header to payload.
func BuildEthFrame(dst, src net.HardwareAddr, etherType uint16, payload []byte) ([]byte, error) {
	if len(dst) != 6 || len(src) != 6 {
		return nil, fmt.Errorf("oam: hardware address must be 6 bytes, got dst=%d src=%d", len(dst), len(src))
	}
	frame := make([]byte, EthHeaderLen+len(payload))
	copy(frame[0:6], dst)
	copy(frame[6:12], src)
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	copy(frame[EthHeaderLen:], payload)
	return frame, nil
}

// BuildVLANFrame prepends a single 802.1Q-tagged Ethernet header to
// payload. tpi is almost always EtherTypeVLAN (0x8100); a distinct value
// lets callers build Q-in-Q or provider-bridge tags without a second
// function.
func BuildVLANFrame(dst, src net.HardwareAddr, tpi uint16, tag VLANTag, innerEtherType uint16, payload []byte) ([]byte, error) {
	if len(dst) != 6 || len(src) != 6 {
		return nil, fmt.Errorf("oam: hardware address must be 6 bytes, got dst=%d src=%d", len(dst), len(src))
	}
	frame := make([]byte, VLANHeaderLen+len(payload))
	copy(frame[0:6], dst)
	copy(frame[6:12], src)
	binary.BigEndian.PutUint16(frame[12:14], tpi)
	binary.BigEndian.PutUint16(frame[14:16], tag.pack())
	binary.BigEndian.PutUint16(frame[16:18], innerEtherType)
	copy(frame[VLANHeaderLen:], payload)
	return frame, nil
}

// ParseEthHeader reads the destination, source, and ethertype/TPI fields
// off the front of a frame. It does not consume a VLAN tag; callers
// detect one by checking whether the returned ethertype equals
// EtherTypeVLAN and, if so, calling ParseVLANTag on the remainder.
func ParseEthHeader(frame []byte) (dst, src net.HardwareAddr, etherType uint16, rest []byte, err error) {
	if len(frame) < EthHeaderLen {
		return nil, nil, 0, nil, fmt.Errorf("oam: frame shorter than Ethernet header: %d bytes", len(frame))
	}
	dst = net.HardwareAddr(append([]byte(nil), frame[0:6]...))
	src = net.HardwareAddr(append([]byte(nil), frame[6:12]...))
	etherType = binary.BigEndian.Uint16(frame[12:14])
	return dst, src, etherType, frame[EthHeaderLen:], nil
}

// ParseVLANTag decodes a 4-byte 802.1Q tag (PCP/DEI/VID plus inner
// ethertype) from the front of rest, as produced by ParseEthHeader when
// etherType == EtherTypeVLAN.
func ParseVLANTag(rest []byte) (tag VLANTag, innerEtherType uint16, payload []byte, err error) {
	if len(rest) < 4 {
		return VLANTag{}, 0, nil, fmt.Errorf("oam: VLAN tag truncated: %d bytes", len(rest))
	}
	tag = unpackVLANTag(binary.BigEndian.Uint16(rest[0:2]))
	innerEtherType = binary.BigEndian.Uint16(rest[2:4])
	return tag, innerEtherType, rest[4:], nil
}
