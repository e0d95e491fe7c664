package privacy

import "net/netip"

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4, /48 for
// IPv6) so request logs keep coarse origin without the full client address.
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.String()
}
