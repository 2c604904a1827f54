package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const throttledBody = `{"error":"Too many requests, please try again later."}`

// Limiter enforces a fixed request window per client identity. Counters
// live in an expiring cache so idle clients cost nothing.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows *gocache.Cache
	now     func() time.Time

	// OnReject is called once per throttled request (metrics hook).
	OnReject func()
}

type window struct {
	count    int
	resetsAt time.Time
}

func New(limit int, windowSize time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  windowSize,
		windows: gocache.New(windowSize, 2*windowSize),
		now:     time.Now,
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, resetsAt := l.take(clientKey(r))

		remaining := l.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetsAt.Unix(), 10))

		if count > l.limit {
			if l.OnReject != nil {
				l.OnReject()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(throttledBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take counts the request against the client's current window and
// returns the new count plus when the window resets.
func (l *Limiter) take(key string) (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.windows.Get(key); ok {
		win := entry.(*window)
		if now.Before(win.resetsAt) {
			win.count++
			return win.count, win.resetsAt
		}
	}

	win := &window{count: 1, resetsAt: now.Add(l.window)}
	l.windows.Set(key, win, l.window)
	return win.count, win.resetsAt
}

// clientKey identifies the caller: first X-Forwarded-For hop when the
// service sits behind a proxy, otherwise the remote address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
