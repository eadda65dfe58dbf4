package ipfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesCIDR(t *testing.T) {
	tMatrix := []struct {
		Name   string
		IP     string
		CIDR   string
		Result bool
	}{
		{"IPv4InRange", "192.30.252.1", "192.30.252.0/22", true},
		{"IPv4UpperEdge", "192.30.255.255", "192.30.252.0/22", true},
		{"IPv4OutOfRange", "10.0.0.1", "192.30.252.0/22", false},
		{"IPv4JustOutside", "192.31.0.0", "192.30.252.0/22", false},
		{"IPv4PrefixZero", "8.8.8.8", "0.0.0.0/0", true},
		{"IPv4PrefixZeroHighBit", "255.255.255.255", "0.0.0.0/0", true},
		{"IPv4Prefix32Match", "140.82.112.1", "140.82.112.1/32", true},
		{"IPv4Prefix32Mismatch", "140.82.112.2", "140.82.112.1/32", false},
		{"IPv4NoPrefixMatch", "140.82.112.1", "140.82.112.1", true},
		{"IPv4NoPrefixMismatch", "140.82.112.2", "140.82.112.1", false},
		{"IPv4Prefix1", "128.0.0.1", "128.0.0.0/1", true},
		{"IPv4Prefix1Mismatch", "127.255.255.255", "128.0.0.0/1", false},
		{"MappedDotted", "::ffff:192.30.252.1", "192.30.252.0/22", true},
		{"MappedUpperCase", "::FFFF:192.30.252.1", "192.30.252.0/22", true},
		{"MappedExpanded", "0:0:0:0:0:ffff:192.30.252.1", "192.30.252.0/22", true},
		{"MappedHexGroups", "::ffff:c01e:fc01", "192.30.252.0/22", true},
		{"MappedOutOfRange", "::ffff:10.0.0.1", "192.30.252.0/22", false},
		{"MappedInvalidOctet", "::ffff:192.30.252.300", "192.30.252.0/22", false},
		{"IPv6InRange", "2a0a:a440::1", "2a0a:a440::/29", true},
		{"IPv6PartialGroupEdge", "2a0a:a447:ffff::1", "2a0a:a440::/29", true},
		{"IPv6PartialGroupOutside", "2a0a:a448::1", "2a0a:a440::/29", false},
		{"IPv6OutOfRange", "2001:db8::1", "2a0a:a440::/29", false},
		{"IPv6Prefix128", "2001:db8::1", "2001:db8::1/128", true},
		{"IPv6Prefix128Mismatch", "2001:db8::2", "2001:db8::1/128", false},
		{"IPv6PrefixZero", "2001:db8::1", "::/0", true},
		{"IPv6Prefix64", "2606:50c0:8000::154", "2606:50c0:8000::/64", true},
		{"IPv6UpperCase", "2A0A:A440::1", "2a0a:a440::/29", true},
		{"MixedIPv4InIPv6Range", "192.30.252.1", "2a0a:a440::/29", false},
		{"MixedIPv6InIPv4Range", "2a0a:a440::1", "192.30.252.0/22", false},
		{"MixedIPv4InZeroIPv6Range", "10.0.0.1", "::/0", false},
		{"InvalidIP", "not-an-ip", "192.30.252.0/22", false},
		{"EmptyIP", "", "192.30.252.0/22", false},
		{"InvalidCIDR", "192.30.252.1", "192.30.252.0/abc", false},
		{"PrefixTooLongIPv4", "192.30.252.1", "192.30.252.0/33", false},
		{"PrefixTooLongIPv6", "2a0a:a440::1", "2a0a:a440::/129", false},
		{"NegativePrefix", "192.30.252.1", "192.30.252.0/-1", false},
		{"EmptyCIDR", "192.30.252.1", "", false},
		{"MalformedIPv6", "2a0a:a440:::1", "2a0a:a440::/29", false},
	}

	for _, tCase := range tMatrix {
		t.Run(tCase.Name, func(t *testing.T) {
			assert.Equal(t, tCase.Result, MatchesCIDR(tCase.IP, tCase.CIDR))
		})
	}
}

func TestNormalizeIP(t *testing.T) {
	tMatrix := []struct {
		Name   string
		IP     string
		Result string
	}{
		{"PlainIPv4", "192.30.252.1", "192.30.252.1"},
		{"Mapped", "::ffff:192.30.252.1", "192.30.252.1"},
		{"MappedUpperCase", "::FFFF:192.30.252.1", "192.30.252.1"},
		{"MappedExpanded", "0:0:0:0:0:ffff:192.30.252.1", "192.30.252.1"},
		{"MappedHexGroups", "::ffff:c01e:fc01", "192.30.252.1"},
		{"PlainIPv6", "2a0a:a440::1", "2a0a:a440::1"},
		{"InvalidOctet", "::ffff:192.30.252.300", "::ffff:192.30.252.300"},
		{"Garbage", "garbage", "garbage"},
		{"Whitespace", " 10.0.0.1 ", "10.0.0.1"},
	}

	for _, tCase := range tMatrix {
		t.Run(tCase.Name, func(t *testing.T) {
			assert.Equal(t, tCase.Result, NormalizeIP(tCase.IP))
		})
	}
}
