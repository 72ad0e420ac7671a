package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// localIdleTTL is how long a client may stay silent before its bucket is
// dropped. A bucket idle this long has refilled, so dropping it changes nothing.
const localIdleTTL = time.Minute

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter is the in-process token bucket used when Redis is not
// configured. Limits are per instance, not shared across replicas.
type LocalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	perMin    int
	lastSweep time.Time
	now       func() time.Time
}

func NewLocalRateLimiter(perMinute int) *LocalRateLimiter {
	perMinute = max(perMinute, 1)
	return &LocalRateLimiter{
		buckets: make(map[string]*localBucket),
		perMin:  perMinute,
		now:     time.Now,
	}
}

func (l *LocalRateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= localIdleTTL {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// sweep drops idle buckets. Callers hold mu.
func (l *LocalRateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= localIdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *LocalRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := l.now()
		lim := l.limiter(c.ClientIP(), now)

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.perMin))
		if !lim.AllowN(now, 1) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "Too many requests. Slow down!",
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, int(lim.TokensAt(now)))))
		c.Next()
	}
}
