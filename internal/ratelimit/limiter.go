// Package ratelimit enforces per-access-key request budgets.
package ratelimit

import (
	"context"
	"time"
)

// Window is the budget period limits are expressed in.
const Window = time.Minute

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects requests made under key against limit requests per Window.
// A limit of zero or less admits everything.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) Decision
	Close() error
}

func unlimited() Decision {
	return Decision{Allowed: true}
}
