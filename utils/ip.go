package utils

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP resolves the originating client address, preferring the
// first hop of X-Forwarded-For when a proxy sits in front of the server.
func RealClientIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		if i := strings.IndexByte(xfwd, ','); i >= 0 {
			xfwd = xfwd[:i]
		}
		return strings.TrimSpace(xfwd)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
