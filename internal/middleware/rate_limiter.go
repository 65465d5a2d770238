package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ironsheep/layout-detect/internal/response"
)

var ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")

// minIdleTTL is the shortest time a silent client keeps its bucket.
const minIdleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than it takes them to refill are dropped, so the map tracks only recent
// clients.
type RateLimiter struct {
	bucket    map[string]*client
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	mutex     sync.Mutex
	log       logrus.FieldLogger
}

func NewRateLimiter(reqRate float64, burstSize int, log logrus.FieldLogger) *RateLimiter {
	ttl := minIdleTTL
	if reqRate > 0 {
		if refill := time.Duration(float64(burstSize) / reqRate * float64(time.Second)); refill > ttl {
			ttl = refill
		}
	}
	return &RateLimiter{
		bucket:    make(map[string]*client),
		rate:      rate.Limit(reqRate),
		burstSize: burstSize,
		idleTTL:   ttl,
		lastSweep: time.Now(),
		now:       time.Now,
		log:       log,
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweep(now)
	}

	c, exist := r.bucket[ip]
	if !exist {
		c = &client{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = c
	}
	c.lastSeen = now

	return c.limiter
}

// sweep drops idle buckets. Callers hold the mutex.
func (r *RateLimiter) sweep(now time.Time) {
	for ip, c := range r.bucket {
		if now.Sub(c.lastSeen) >= r.idleTTL {
			delete(r.bucket, ip)
		}
	}
	r.lastSweep = now
}

// Handler rejects requests beyond the client's budget with 429.
func (r *RateLimiter) Handler(c *fiber.Ctx) error {
	clientIP := c.IP()

	if !r.limiterFor(clientIP).Allow() {
		r.log.WithFields(logrus.Fields{
			"ip":         clientIP,
			"request_id": GetRequestID(c),
		}).Warn("too many requests")
		return c.Status(fiber.StatusTooManyRequests).JSON(response.Body{
			Error: ErrTooManyRequests.Error(),
		})
	}

	return c.Next()
}
