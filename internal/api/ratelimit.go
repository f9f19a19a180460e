package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/chatsync/internal/auth"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per member and forgets idle members.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	members map[string]*limiterEntry
	idle    time.Duration
	stopCh  chan struct{}
	once    sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute events per member with the given burst.
func NewLimiter(perMinute, burst int, cleanupInterval time.Duration) *Limiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		members: map[string]*limiterEntry{},
		idle:    10 * time.Minute,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-l.idle)
			l.mu.Lock()
			for k, e := range l.members {
				if e.lastSeen.Before(cutoff) {
					delete(l.members, k)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// Allow reports whether key may perform one more event now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	e, found := l.members[key]
	if !found {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.members[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// RateLimit rejects requests of members over their budget. It must run
// after auth.Middleware.
func RateLimit(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := auth.MemberID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key) {
			fail(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
