package ifctl

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// IsVLANSubInterface reports whether ifName is a VLAN sub-interface
// (e.g. eth0.100), by asking the kernel for the link and checking its
// IFLA_LINKINFO kind.
func IsVLANSubInterface(ifName string) (bool, error) {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return false, fmt.Errorf("ifctl: LinkByName(%s): %w", ifName, err)
	}
	_, isVLAN := link.(*netlink.Vlan)
	return isVLAN, nil
}

// VLANID returns the 802.1Q VLAN id carried by a VLAN sub-interface. It
// returns an error if ifName is not a VLAN sub-interface.
func VLANID(ifName string) (int, error) {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return 0, fmt.Errorf("ifctl: LinkByName(%s): %w", ifName, err)
	}
	vlan, ok := link.(*netlink.Vlan)
	if !ok {
		return 0, fmt.Errorf("ifctl: %s is not a VLAN sub-interface", ifName)
	}
	return vlan.VlanId, nil
}
