package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"laundry/pkg/logger"
)

const ApartmentHeader = "X-Apartment-Number"

// ApartmentRateLimiter is a sliding-window limit on write requests per apartment.
type ApartmentRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	once     sync.Once
}

func NewApartmentRateLimiter(limit int, window time.Duration, log *logger.Logger) *ApartmentRateLimiter {
	limiter := &ApartmentRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *ApartmentRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for apartment, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, apartment)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ApartmentRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *ApartmentRateLimiter) Allow(apartment string) bool {
	if apartment == "" {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	timestamps := rl.requests[apartment]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[apartment] = valid
		return false
	}

	rl.requests[apartment] = append(valid, now)
	return true
}

// ApartmentRateLimit applies the limiter to writes that name an apartment. Reads and
// anonymous requests pass through.
func ApartmentRateLimit(limiter *ApartmentRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apartment := strings.ToUpper(strings.TrimSpace(r.Header.Get(ApartmentHeader)))
			if apartment == "" || !isWriteMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(apartment) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", GetRequestID(r.Context()),
					"apartment", apartment,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
