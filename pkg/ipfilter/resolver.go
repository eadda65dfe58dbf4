package ipfilter

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver derives the caller address of a request.
// Forwarding headers are only honored with TrustProxy, since any client can set them.
type ClientIPResolver struct {
	TrustProxy bool
}

func (r ClientIPResolver) Resolve(req *http.Request) string {
	if r.TrustProxy {
		if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return NormalizeIP(first)
			}
		}
		if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
			return NormalizeIP(realIP)
		}
	}
	return NormalizeIP(remoteHost(req.RemoteAddr))
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}
