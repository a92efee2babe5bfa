package input

import (
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrQueueFull   = errors.New("intent queue full")
)

// Handler turns raw intent text from any transport into queued intents.
// It is the single entry point shared by HTTP, WebSocket and IPC.
type Handler struct {
	queue       *Queue
	rateLimiter *RateLimiter
}

// NewHandler creates a handler feeding queue. A nil limiter disables rate limiting.
func NewHandler(queue *Queue, limiter *RateLimiter) *Handler {
	return &Handler{queue: queue, rateLimiter: limiter}
}

// Submit parses name and enqueues it for the next tick.
// mode is only used by the start intent.
func (h *Handler) Submit(source, name, mode string) (Intent, error) {
	t, err := ParseIntentType(name)
	if err != nil {
		return Intent{}, fmt.Errorf("%q: %w", name, err)
	}

	if h.rateLimiter != nil && !h.rateLimiter.Allow(source) {
		log.Printf("🚫 Rate limited: %s", source)
		return Intent{}, ErrRateLimited
	}

	in := Intent{Type: t, Mode: mode, Source: source, ReceivedAt: time.Now()}
	if !h.queue.Enqueue(in) {
		return in, ErrQueueFull
	}
	return in, nil
}

// Queue returns the queue intents are written to
func (h *Handler) Queue() *Queue {
	return h.queue
}

// Stop releases the rate limiter
func (h *Handler) Stop() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}
