package httprouter

import (
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// vpnNamePrefixes mirrors maciekish-split-vpn-webui's lanInterfaceScore
// exclusion list: these name prefixes are classified as VPN/tunnel
// interfaces regardless of address.
var vpnNamePrefixes = []string{"wg", "tun", "vpn"}

// localInterface describes one usable network interface, analogous to
// split-vpn-webui's InterfaceInfo.
type localInterface struct {
	Name string
	IPs  []netip.Addr
}

func listInterfaces() ([]localInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]localInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		li := localInterface{Name: iface.Name}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipNet.IP.To4())
			if !ok {
				if v6, ok6 := netip.AddrFromSlice(ipNet.IP.To16()); ok6 {
					addr = v6
				} else {
					continue
				}
			}
			li.IPs = append(li.IPs, addr)
		}
		out = append(out, li)
	}
	return out, nil
}

// isVPNByName classifies an interface as VPN-like purely by its name
// prefix, the cheap heuristic spec.md §4.A calls for.
func isVPNByName(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range vpnNamePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// buildVPNSet turns configured VPN subnets into a netipx.IPSet so interface
// classification can also match by subnet, not just by name.
func buildVPNSet(subnets []string) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, s := range subnets {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			continue
		}
		b.AddPrefix(prefix)
	}
	return b.IPSet()
}

// resolveInterface finds the named interface's first IP. If name is empty
// or the interface doesn't exist, ok is false — callers MUST fall back to
// the default interface rather than block, per spec.md §4.A.
func resolveInterface(name string) (netip.Addr, bool) {
	if name == "" {
		return netip.Addr{}, false
	}
	ifaces, err := listInterfaces()
	if err != nil {
		return netip.Addr{}, false
	}
	for _, li := range ifaces {
		if li.Name == name && len(li.IPs) > 0 {
			return li.IPs[0], true
		}
	}
	return netip.Addr{}, false
}

// classifyInterface reports whether the named interface should be treated
// as VPN, by name prefix first (cheap) and then by subnet membership
// against vpnSet (if configured).
func classifyInterface(name string, vpnSet *netipx.IPSet) bool {
	if isVPNByName(name) {
		return true
	}
	if vpnSet == nil {
		return false
	}
	addr, ok := resolveInterface(name)
	if !ok {
		return false
	}
	return vpnSet.Contains(addr)
}
