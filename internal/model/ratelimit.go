package model

import (
	"math"
	"time"
)

// RateLimitRecord is the stored state for one identity.
//
// Window strategies use Count and ResetTime; the token bucket uses Tokens and
// LastRefill, with ResetTime set to the instant the bucket is full again.
// Count and Tokens are never negative.
type RateLimitRecord struct {
	Identity   string    `json:"identity"`
	Count      int64     `json:"count"`
	ResetTime  time.Time `json:"reset_time"`
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// NewBucket returns a full bucket for identity.
func NewBucket(identity string, capacity float64, now time.Time) *RateLimitRecord {
	return &RateLimitRecord{
		Identity:   identity,
		Tokens:     capacity,
		LastRefill: now,
		ResetTime:  now,
	}
}

// Take refills the bucket for the time elapsed since LastRefill (capped at
// capacity) and consumes one token if at least one is available.
func (r *RateLimitRecord) Take(capacity, refillPerMs float64, now time.Time) bool {
	if elapsed := now.Sub(r.LastRefill); elapsed > 0 {
		r.Tokens = math.Min(capacity, r.Tokens+float64(elapsed)/float64(time.Millisecond)*refillPerMs)
		r.LastRefill = now
	}
	if r.Tokens < 0 {
		r.Tokens = 0
	}

	taken := r.Tokens >= 1
	if taken {
		r.Tokens--
	}

	r.ResetTime = now
	if refillPerMs > 0 && r.Tokens < capacity {
		missing := (capacity - r.Tokens) / refillPerMs
		r.ResetTime = now.Add(time.Duration(math.Ceil(missing)) * time.Millisecond)
	}
	return taken
}
