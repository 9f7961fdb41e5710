// rate_limiter.go - Per-caller rate limiting for the ledger daemon
package main

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	lastRefill   time.Time
	refillPeriod time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refillCount := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if refillCount > 0 {
		rl.tokens += refillCount
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// CallerRateLimiter manages rate limiting per caller address.
type CallerRateLimiter struct {
	mu           sync.Mutex
	limiters     map[common.Address]*RateLimiter
	maxTokens    int
	refillPeriod time.Duration
}

// NewCallerRateLimiter creates a new per-caller rate limiter
func NewCallerRateLimiter(maxTokens int, refillPeriod time.Duration) *CallerRateLimiter {
	return &CallerRateLimiter{
		limiters:     make(map[common.Address]*RateLimiter),
		maxTokens:    maxTokens,
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request from a caller is allowed
func (crl *CallerRateLimiter) Allow(caller common.Address) bool {
	crl.mu.Lock()
	limiter, exists := crl.limiters[caller]
	if !exists {
		limiter = NewRateLimiter(crl.maxTokens, crl.refillPeriod)
		crl.limiters[caller] = limiter
	}
	crl.mu.Unlock()

	return limiter.Allow()
}
