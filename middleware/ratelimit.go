package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"devconnector/logutil"
	"devconnector/metrics"
	"devconnector/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	metrics  metrics.Recorder

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewIPRateLimiter allows perMinute requests per IP per minute. Buckets idle
// for longer than idle are swept in the background until Stop is called.
func NewIPRateLimiter(perMinute int, idle time.Duration, rec metrics.Recorder) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	rl := &IPRateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		idle:     idle,
		metrics:  rec,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastAccess = time.Now()
	rl.mu.Unlock()

	return l.limiter.Allow()
}

func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			rl.metrics.RecordRateLimited()
			log := logutil.GetOrDefault(c.Request.Context())
			log.Warn().
				Str("ip", ip).
				Msg("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewRateLimitedError())
			return
		}
		c.Next()
	}
}

// retryAfter is the number of seconds until one token is refilled.
func (rl *IPRateLimiter) retryAfter() int {
	sec := int(math.Ceil(1.0 / float64(rl.limit)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IPRateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if now.Sub(l.lastAccess) > rl.idle {
			delete(rl.limiters, ip)
		}
	}
}
