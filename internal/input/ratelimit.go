package input

import (
	"sync"
	"time"
)

// RateLimiter implements per-source intent rate limiting
type RateLimiter struct {
	mu      sync.Mutex
	sources map[string]*sourceLimit
	config  RateLimitConfig

	stopOnce sync.Once
	stopChan chan struct{}
}

type sourceLimit struct {
	count      int
	windowEnd  time.Time
	lastIntent time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// MaxPerWindow is max intents per window
	MaxPerWindow int
	// WindowDuration is the window size
	WindowDuration time.Duration
	// CooldownDuration is minimum time between intents
	CooldownDuration time.Duration
}

// DefaultRateLimitConfig allows fast play but not scripted floods
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     30,
	WindowDuration:   time.Second,
	CooldownDuration: 10 * time.Millisecond,
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		sources:  make(map[string]*sourceLimit),
		config:   cfg,
		stopChan: make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a source may submit another intent
func (rl *RateLimiter) Allow(source string) bool {
	return rl.allowAt(source, time.Now())
}

func (rl *RateLimiter) allowAt(source string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, exists := rl.sources[source]
	if !exists {
		rl.sources[source] = &sourceLimit{
			count:      1,
			windowEnd:  now.Add(rl.config.WindowDuration),
			lastIntent: now,
		}
		return true
	}

	// Check cooldown
	if now.Sub(limit.lastIntent) < rl.config.CooldownDuration {
		return false
	}

	// Check/reset window
	if now.After(limit.windowEnd) {
		limit.count = 1
		limit.windowEnd = now.Add(rl.config.WindowDuration)
		limit.lastIntent = now
		return true
	}

	if limit.count >= rl.config.MaxPerWindow {
		return false
	}

	limit.count++
	limit.lastIntent = now
	return true
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// cleanup removes idle sources every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case now := <-ticker.C:
			rl.prune(now.Add(-5 * time.Minute))
		}
	}
}

func (rl *RateLimiter) prune(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, limit := range rl.sources {
		if limit.lastIntent.Before(cutoff) {
			delete(rl.sources, key)
		}
	}
}
