// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows. It is safe for
// concurrent use. A nil *Limiter allows everything.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	cleanup  time.Duration // how often to clean old entries

	stopOnce sync.Once
	stop     chan struct{}
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter that allows limit requests per key per duration.
// A limit of zero or less returns nil, which disables limiting.
func New(limit int, duration time.Duration) *Limiter {
	if limit <= 0 {
		return nil
	}
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		cleanup:  duration * 2,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request for key fits in the current window and
// counts it if so.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{
			count:     1,
			expiresAt: now.Add(l.duration),
		}
		return true
	}

	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	if l == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		return l.limit
	}

	remaining := l.limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns how long until key's window resets.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	if d := time.Until(w.expiresAt); d > 0 {
		return d
	}
	return 0
}

// Reset clears the count for a specific key.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

// cleanupLoop periodically removes expired entries to prevent memory leaks.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Proxies lists the reverse proxies whose forwarding headers are believed.
// The zero value trusts nobody, so the client address is always RemoteAddr.
type Proxies []netip.Prefix

// ParseProxies parses CIDR blocks or bare addresses such as "10.0.0.0/8"
// and "127.0.0.1".
func ParseProxies(specs []string) (Proxies, error) {
	var out Proxies
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (p Proxies) trusts(addr string) bool {
	a, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, pre := range p {
		if pre.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the address a request came from. X-Forwarded-For and
// X-Real-IP are honoured only when the direct peer is a trusted proxy; the
// forwarded chain is then read from the right, skipping trusted hops, so a
// client cannot choose its own address by sending the header.
func (p Proxies) ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		peer = r.RemoteAddr
	}
	if !p.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !p.trusts(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}
