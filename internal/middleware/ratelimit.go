package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type window struct {
	count int
	until time.Time
}

// sweepAt is the number of tracked clients above which expired windows are dropped.
const sweepAt = 1024

type limiter struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	windows map[string]*window
	now     func() time.Time
}

// allow counts one request for key and reports the wait until the window resets
// when the limit is already reached.
func (l *limiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.windows) >= sweepAt {
		for k, w := range l.windows {
			if now.After(w.until) {
				delete(l.windows, k)
			}
		}
	}
	w, ok := l.windows[key]
	if !ok || now.After(w.until) {
		w = &window{until: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.until.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per client IP in each fixed window of length per.
// Only methods listed in methods are counted; an empty list counts every request.
func RateLimit(limit int, per time.Duration, methods ...string) func(http.Handler) http.Handler {
	counted := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		counted[strings.ToUpper(m)] = struct{}{}
	}
	l := &limiter{limit: limit, per: per, windows: make(map[string]*window), now: time.Now}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := counted[r.Method]; len(counted) > 0 && !ok {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.allow(clientIPForRateLimit(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
