package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// TokenLimiter enforces a tokens-per-minute budget for AI API calls.
type TokenLimiter struct {
	limiter *rate.Limiter
}

// NewTokenLimiter creates a limiter allowing maxTokensPerMinute tokens per minute.
func NewTokenLimiter(maxTokensPerMinute int) *TokenLimiter {
	perSecond := rate.Limit(float64(maxTokensPerMinute) / 60.0)
	return &TokenLimiter{
		limiter: rate.NewLimiter(perSecond, maxTokensPerMinute),
	}
}

// Wait blocks until n tokens are available or the context is cancelled.
func (t *TokenLimiter) Wait(ctx context.Context, n int) error {
	if n > t.limiter.Burst() {
		n = t.limiter.Burst()
	}
	return t.limiter.WaitN(ctx, n)
}

// GetRemaining reports the tokens currently available without waiting.
func (t *TokenLimiter) GetRemaining() int {
	return int(t.limiter.Tokens())
}
