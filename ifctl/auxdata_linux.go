package ifctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// tpStatusVLANValid is TP_STATUS_VLAN_VALID from linux/if_packet.h: set
// in tpacket_auxdata.tp_status when tp_vlan_tci carries a tag the kernel
// stripped before delivering the frame to this socket.
const tpStatusVLANValid = 0x10

// ParseAuxdata walks the ancillary data attached to a recvmsg call on an
// AF_PACKET socket with PACKET_AUXDATA enabled and extracts the VLAN tag
// the kernel may have stripped from the wire frame. tagged is false when
// no auxdata control message is present or the frame carried no tag; in
// that case vlanTCI is meaningless.
func ParseAuxdata(oob []byte) (vlanTCI uint16, tagged bool, err error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, false, err
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_PACKET || m.Header.Type != unix.PACKET_AUXDATA {
			continue
		}
		if len(m.Data) < int(unsafe.Sizeof(unix.TpacketAuxdata{})) {
			continue
		}
		aux := (*unix.TpacketAuxdata)(unsafe.Pointer(&m.Data[0]))
		if aux.Status&tpStatusVLANValid != 0 || aux.Vlan_tci != 0 {
			return uint16(aux.Vlan_tci), true, nil
		}
	}
	return 0, false, nil
}
