package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweep = 5 * time.Minute
	limiterStale = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu    sync.Mutex
	r     rate.Limit
	b     int
	byKey map[string]*ipLimiter
	swept time.Time
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.swept) > limiterSweep {
		for k, l := range s.byKey {
			if now.Sub(l.lastSeen) > limiterStale {
				delete(s.byKey, k)
			}
		}
		s.swept = now
	}
	l, ok := s.byKey[key]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.byKey[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// RateLimit provides per-client token-bucket rate limiting keyed by the
// authenticated player when known, else by IP.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	set := &limiterSet{r: r, b: b, byKey: make(map[string]*ipLimiter), swept: time.Now()}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := GetPlayerID(c); id != "" {
			key = "player:" + id
		}
		if !set.allow(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
