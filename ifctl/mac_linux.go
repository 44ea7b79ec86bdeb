package ifctl

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// siocgifhwaddr is SIOCGIFHWADDR, the ioctl request that returns the
// hardware address bound to a named interface.
var siocgifhwaddr = uintptr(0x8927)

// ifreqHWAddr mirrors the layout of struct ifreq's ifr_name / ifr_hwaddr
// fields for SIOCGIFHWADDR: a 16-byte interface name followed by a
// sockaddr (2-byte family, 14 bytes of address data, of which only the
// first 6 hold a MAC), padded to the 40 bytes struct ifreq occupies on
// 64-bit Linux, since the kernel copies the whole struct in and out.
type ifreqHWAddr struct {
	name   [16]byte
	family uint16
	data   [14]byte
	_      [8]byte
}

// ResolveMAC returns the hardware address bound to ifName by issuing
// SIOCGIFHWADDR on a short-lived UDP datagram socket, the same socket
// type the kernel expects this request on regardless of what protocol
// the interface actually carries.
func ResolveMAC(ifName string) (net.HardwareAddr, error) {
	if len(ifName) >= 16 {
		return nil, fmt.Errorf("ifctl: interface name %q too long", ifName)
	}
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ifctl: socket: %w", err)
	}
	defer syscall.Close(fd)

	var req ifreqHWAddr
	copy(req.name[:], ifName)
	if err := ioctl.Ioctl(uintptr(fd), siocgifhwaddr, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, fmt.Errorf("ifctl: SIOCGIFHWADDR(%s): %w", ifName, err)
	}
	mac := make(net.HardwareAddr, 6)
	copy(mac, req.data[:6])
	return mac, nil
}
