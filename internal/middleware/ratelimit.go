package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

const (
	limiterSweepThreshold = 1000
	limiterIdleTTL        = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket refilled
// at perMinute tokens a minute.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	now       func() time.Time
}

// NewRateLimiter returns a limiter. A non-positive perMinute disables it.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{perMinute: perMinute, clients: map[string]*clientLimiter{}, now: time.Now}
}

// Handler enforces the limit, answering 429 RATE_LIMITED when exhausted.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.perMinute <= 0 {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			retryAfter := int((time.Minute / time.Duration(l.perMinute)).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, ""))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.clients[clientIP]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[clientIP] = entry
	}
	entry.lastSeen = now
	l.sweepLocked(now)

	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	if len(l.clients) < limiterSweepThreshold {
		return
	}
	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}
