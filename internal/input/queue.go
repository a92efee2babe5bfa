package input

import (
	"log"
	"sync/atomic"
	"time"
)

// DefaultQueueSize holds a few seconds of key mashing
const DefaultQueueSize = 64

// Queue is a bounded non-blocking intent buffer. Producers are HTTP, WebSocket
// and IPC handlers; the engine tick is the only consumer.
type Queue struct {
	intents chan Intent

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewQueue creates a queue holding up to size intents
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{intents: make(chan Intent, size)}
}

// Enqueue adds an intent (non-blocking).
// Returns false if the queue is full and the intent was dropped.
func (q *Queue) Enqueue(in Intent) bool {
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = time.Now()
	}

	select {
	case q.intents <- in:
		q.enqueued.Add(1)
		return true
	default:
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			log.Printf("⚠️ Intent queue full, dropped %s from %s (total dropped: %d)",
				in.Type, in.Source, dropped)
		}
		return false
	}
}

// Drain hands up to max pending intents to fn without blocking.
// Returns the number processed.
func (q *Queue) Drain(max int, fn func(Intent)) int {
	n := 0
	for n < max {
		select {
		case in := <-q.intents:
			q.updateAvgWaitTime(time.Since(in.ReceivedAt))
			fn(in)
			q.processed.Add(1)
			n++
		default:
			return n
		}
	}
	return n
}

// Len returns the number of pending intents
func (q *Queue) Len() int {
	return len(q.intents)
}

// updateAvgWaitTime updates exponential moving average
func (q *Queue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// alpha = 0.1
	q.avgWaitTime.Store((current*9 + waitTime.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(len(q.intents)),
		BufferSize:     uint64(cap(q.intents)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.intents)) / float64(cap(q.intents)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
