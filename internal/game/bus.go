package game

import (
	"log"
	"sync"
	"sync/atomic"
)

// DefaultEventBusSize is used when no buffer size is configured
const DefaultEventBusSize = 256

// EventBus fans session events out to subscribers on its own goroutine.
// Notify never blocks the tick: a full buffer drops the event.
type EventBus struct {
	events chan Event

	mu     sync.RWMutex
	subs   map[uint64]func(Event)
	nextID uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewEventBus creates a bus buffering up to size events
func NewEventBus(size int) *EventBus {
	if size <= 0 {
		size = DefaultEventBusSize
	}
	return &EventBus{
		events:   make(chan Event, size),
		subs:     make(map[uint64]func(Event)),
		stopChan: make(chan struct{}),
	}
}

// Start launches the dispatch goroutine
func (b *EventBus) Start() {
	if b.running.Swap(true) {
		return
	}
	b.wg.Add(1)
	go b.run()
}

// Stop drains queued events and ends the dispatch goroutine
func (b *EventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		b.running.Store(false)
	})
}

// Notify implements Notifier
func (b *EventBus) Notify(e Event) {
	select {
	case b.events <- e:
	default:
		if n := b.dropped.Add(1); n%100 == 1 {
			log.Printf("⚠️ Event bus full, dropped %s (total dropped: %d)", e.Topic, n)
		}
	}
}

// Subscribe registers fn for every event and returns a function that removes it.
// fn runs on the bus goroutine and must not block for long.
func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *EventBus) run() {
	defer b.wg.Done()
	for {
		select {
		case e := <-b.events:
			b.dispatch(e)
		case <-b.stopChan:
			for {
				select {
				case e := <-b.events:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) dispatch(e Event) {
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		safeNotify(NotifierFunc(fn), e)
	}
	b.delivered.Add(1)
}

// BusStats holds event bus counters
type BusStats struct {
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Pending     int    `json:"pending"`
	Subscribers int    `json:"subscribers"`
}

// Stats returns current bus counters
func (b *EventBus) Stats() BusStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return BusStats{
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Pending:     len(b.events),
		Subscribers: n,
	}
}
