package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages rate limits for multiple clients
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a new rate limiter
// requestsPerHour: total requests allowed per hour per client (e.g., 60)
// burst: max requests in a burst (e.g., 5)
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	// Convert requests per hour to requests per second
	r := rate.Limit(float64(requestsPerHour) / 3600.0)

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific client
func (l *Limiter) GetLimiter(clientKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[clientKey]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[clientKey] = limiter
	}

	return limiter
}

// Allow checks if a request is allowed for the given client
func (l *Limiter) Allow(clientKey string) bool {
	return l.GetLimiter(clientKey).Allow()
}

// Tokens returns the current number of available tokens for a client
func (l *Limiter) Tokens(clientKey string) float64 {
	return l.GetLimiter(clientKey).Tokens()
}
