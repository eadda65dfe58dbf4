package ipfilter

import (
	"encoding/binary"
	"net/netip"
	"strconv"
	"strings"
)

// NormalizeIP turns IPv4-mapped IPv6 addresses (::ffff:a.b.c.d, ::ffff:XXXX:YYYY and
// their expanded or upper case variants) into plain dotted-quad IPv4.
// Anything else, including unparseable input, is returned unchanged.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	if addr.Is4In6() {
		return addr.Unmap().String()
	}
	return ip
}

// MatchesCIDR reports whether ip lies within cidr.
// A cidr without prefix length only matches the exact address.
// Addresses and ranges of different families never match.
func MatchesCIDR(ip, cidr string) bool {
	addr, err := netip.ParseAddr(NormalizeIP(ip))
	if err != nil {
		return false
	}
	addr = addr.WithZone("")

	base, bits, ok := parseCIDR(cidr)
	if !ok {
		return false
	}

	switch {
	case addr.Is4() && base.Is4():
		return matchIPv4(addr, base, bits)
	case addr.Is6() && base.Is6():
		return matchIPv6(addr, base, bits)
	default:
		return false
	}
}

func parseCIDR(cidr string) (netip.Addr, int, bool) {
	baseStr, bitsStr, hasBits := strings.Cut(strings.TrimSpace(cidr), "/")

	base, err := netip.ParseAddr(baseStr)
	if err != nil || base.Zone() != "" {
		return netip.Addr{}, 0, false
	}
	if !hasBits {
		return base, base.BitLen(), true
	}

	bits, err := strconv.Atoi(bitsStr)
	if err != nil || bits < 0 || bits > base.BitLen() {
		return netip.Addr{}, 0, false
	}
	return base, bits, true
}

func matchIPv4(addr, base netip.Addr, bits int) bool {
	a4, b4 := addr.As4(), base.As4()
	ipInt := binary.BigEndian.Uint32(a4[:])
	rangeInt := binary.BigEndian.Uint32(b4[:])

	// Shifting a uint32 by 32 yields 0, so /0 matches everything.
	mask := uint32(0xFFFFFFFF) << (32 - bits)
	return ipInt&mask == rangeInt&mask
}

func matchIPv6(addr, base netip.Addr, bits int) bool {
	a16, b16 := addr.As16(), base.As16()

	fullGroups := bits / 16
	remainder := bits % 16

	for i := range fullGroups {
		if group(a16, i) != group(b16, i) {
			return false
		}
	}
	if remainder == 0 || fullGroups >= 8 {
		return true
	}

	mask := uint16(0xFFFF << (16 - remainder))
	return group(a16, fullGroups)&mask == group(b16, fullGroups)&mask
}

func group(addr [16]byte, i int) uint16 {
	return binary.BigEndian.Uint16(addr[i*2 : i*2+2])
}
