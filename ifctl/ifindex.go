package ifctl

import (
	"fmt"
	"net"
)

// ResolveIfIndex returns the kernel interface index for ifName. This is
// a one-shot stdlib lookup rather than a netlink round trip: unlike VLAN
// kind detection, there is no link-introspection concern here that a
// third-party client would do any better than net.InterfaceByName.
func ResolveIfIndex(ifName string) (int, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return 0, fmt.Errorf("ifctl: InterfaceByName(%s): %w", ifName, err)
	}
	return iface.Index, nil
}
