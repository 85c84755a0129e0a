package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/logger"

	"go.uber.org/zap"
)

// RateLimit caps requests per client IP per minute. A non-positive limit
// disables it. X-Forwarded-For is only read from trusted peers.
func RateLimit(store cache.Store, perMinute int, trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r, trusted)
			if store.IsRateLimited(r.Context(), "ip:"+ip, perMinute, time.Minute) {
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", zap.String("ip", ip))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP walks X-Forwarded-For right to left past trusted hops. The
// header is ignored unless the direct peer is itself trusted.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer, trusted) {
		return host
	}

	client := peer
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop
		if !isTrusted(hop, trusted) {
			break
		}
	}
	return client.Unmap().String()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
