package identity

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/memberhub/portal/internal/platform/httpx"
)

// ipLimiter keeps one token bucket per client address and evicts idle ones.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	r        rate.Limit
	burst    int
	evictTTL time.Duration
	stop     chan struct{}
	once     sync.Once
}

func newIPLimiter(r rate.Limit, burst int, evictTTL time.Duration) *ipLimiter {
	l := &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		r:        r,
		burst:    burst,
		evictTTL: evictTTL,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = lim
	}
	l.lastSeen[ip] = time.Now()
	return lim.Allow()
}

func (l *ipLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *ipLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.evictTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-l.evictTTL)
			for ip, last := range l.lastSeen {
				if last.Before(cutoff) {
					delete(l.limiters, ip)
					delete(l.lastSeen, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// middleware rejects requests from addresses over their budget.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(time.Minute.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(httpx.ClientIP(r)) {
			w.Header().Set("Retry-After", retryAfter)
			httpx.Error(w, http.StatusTooManyRequests, "too many sign-in attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}
