package geo

import (
	"net/netip"
	"strings"
)

// IsPublicIP reports whether s is a routable unicast address worth geolocating
func IsPublicIP(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate() && !isSharedAddress(addr)
}

// carrier-grade NAT, 100.64.0.0/10
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

func isSharedAddress(addr netip.Addr) bool {
	return addr.Is4() && cgnat.Contains(addr)
}
