package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"expensa/internal/log"
)

// DetectionMetrics counts flagged and refused requests.
type DetectionMetrics struct {
	SuspiciousRequests int64
	BlockedRequests    int64
}

// Detector flags probing requests and resolves the client address behind
// trusted proxies.
type Detector struct {
	metrics        *DetectionMetrics
	trustedProxies []*net.IPNet
}

var (
	// The API only serves /api/... and /health; these paths come from
	// scanners looking for leaked files or a way out of the route tree.
	pathProbes = []string{"../", "..\\", "/.env", "/.git", "/.ssh", "etc/passwd", ".php"}

	// Query values are dates, IDs and months. These fragments only show up
	// in injection attempts.
	queryProbes = []string{"union select", "<script", "javascript:", "' or '1'='1"}

	scannerAgents  = []string{"sqlmap", "nikto", "gobuster", "masscan", "zgrab"}
	blockedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	trustedProxyCIDRs = []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}
)

const (
	maxURLLength   = 2048
	maxForwardHops = 6
)

func NewDetector() *Detector {
	d := &Detector{metrics: &DetectionMetrics{}}
	for _, cidr := range trustedProxyCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("trusted proxy %s: %v", cidr, err))
		}
		d.trustedProxies = append(d.trustedProxies, network)
	}
	return d
}

// Inspect returns why r looks like probing or scanning, or "" when it looks
// like an ordinary API call. Only the first matching reason is reported.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return reason
}

func inspect(r *http.Request) string {
	if isBlockedMethod(r.Method) {
		return "diagnostic method"
	}
	if p := firstContained(strings.ToLower(r.URL.Path), pathProbes); p != "" {
		return "path " + p
	}
	query := r.URL.RawQuery
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}
	if p := firstContained(strings.ToLower(query), queryProbes); p != "" {
		return "query " + p
	}
	if p := firstContained(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents); p != "" {
		return "scanner " + p
	}
	if len(r.URL.String()) > maxURLLength {
		return "oversized url"
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardHops {
		return "forwarding chain"
	}
	return ""
}

func firstContained(s string, needles []string) string {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return n
		}
	}
	return ""
}

func isBlockedMethod(m string) bool {
	for _, b := range blockedMethods {
		if m == b {
			return true
		}
	}
	return false
}

// Middleware logs suspicious requests and refuses the diagnostic methods
// with 405. Everything else passes through.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				"reason", reason,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		if isBlockedMethod(r.Method) {
			atomic.AddInt64(&d.metrics.BlockedRequests, 1)
			w.Header().Set("Allow", strings.Join(CORSAllowMethods, ", "))
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !d.isTrustedProxy(ip) {
		return peer
	}
	if client := forwardedClient(r); client != "" {
		return client
	}
	return peer
}

// forwardedClient reads the first X-Forwarded-For hop, then X-Real-IP.
func forwardedClient(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		candidate = strings.TrimSpace(candidate)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		BlockedRequests:    atomic.LoadInt64(&d.metrics.BlockedRequests),
	}
}
