package game

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"snake-arena/internal/config"
	"snake-arena/internal/input"
)

// MaxIntentsPerTick bounds how much queued input one tick applies
const MaxIntentsPerTick = 16

// EngineConfig wires an Engine. Zero values pick defaults.
type EngineConfig struct {
	TickRate int
	Game     config.GameConfig
	Limits   config.ResourceLimits
	Seed     int64 // 0 means time-based
	Clock    Clock
	Recorder Recorder
}

// TickInfo is passed to the tick hook after every tick
type TickInfo struct {
	Duration time.Duration
	Intents  int
	State    State
	Score    int
	Level    int
}

// Engine drives a Session from a ticker goroutine. It is the only writer of
// the session; everything else submits intents and reads snapshots.
type Engine struct {
	mu      sync.RWMutex
	session *Session

	queue        *input.Queue
	bus          *EventBus
	eventLog     *EventLog
	snapshotPool *SnapshotPool

	clock    Clock
	tickRate int
	running  bool
	stopped  bool // set by Stop; an engine is not restartable
	ticker   *time.Ticker
	stopChan chan struct{}
	lastTick time.Time

	tickCount uint64
	rngSeed   int64

	onTick func(TickInfo)
}

// NewEngine validates cfg and builds an engine in MENU state
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Limits == (config.ResourceLimits{}) {
		cfg.Limits = config.DefaultLimits()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		queue:    input.NewQueue(cfg.Limits.IntentQueueSize),
		bus:      NewEventBus(cfg.Limits.EventBufferSize),
		eventLog: NewEventLog(cfg.Limits.EventBufferSize),
		clock:    cfg.Clock,
		tickRate: cfg.TickRate,
		stopChan: make(chan struct{}),
		rngSeed:  seed,
	}

	session, err := NewSession(SessionOptions{
		Config:   cfg.Game,
		Rand:     rand.New(rand.NewSource(seed)),
		Clock:    cfg.Clock,
		Recorder: cfg.Recorder,
		Notifier: NotifierFunc(e.notify),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.session = session

	b := cfg.Game.Board
	maxObstacles := 0
	for _, d := range config.Difficulties() {
		if d.ObstacleCount > maxObstacles {
			maxObstacles = d.ObstacleCount
		}
	}
	e.snapshotPool = NewSnapshotPool(LimitsForBoard(b.Columns(), b.Rows(), maxObstacles))
	e.publishSnapshot(cfg.Clock.Now())

	return e, nil
}

// notify runs on the tick goroutine under e.mu
func (e *Engine) notify(ev Event) {
	e.eventLog.Emit(ev)
	e.bus.Notify(ev)
}

// Start begins the game loop. An engine runs once: Start after Stop does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	if e.stopped {
		e.mu.Unlock()
		log.Println("⚠️ Engine already stopped, create a new one to restart")
		return
	}
	e.running = true
	e.lastTick = e.clock.Now()
	e.mu.Unlock()

	e.bus.Start()
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS (seed %d)", e.tickRate, e.rngSeed)
}

// Stop stops the game loop and the event bus
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopped = true
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	e.mu.Unlock()

	e.bus.Stop()
	log.Println("🛑 Game engine stopped")
}

// tick applies queued intents, advances the session and publishes a snapshot
func (e *Engine) tick() {
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	delta := now.Sub(e.lastTick)
	if e.lastTick.IsZero() || delta < 0 {
		delta = 0
	}
	e.lastTick = now
	e.tickCount++

	intents := e.step(now, delta)
	e.publishSnapshot(now)

	if e.onTick != nil {
		e.onTick(TickInfo{
			Duration: time.Since(started),
			Intents:  intents,
			State:    e.session.State(),
			Score:    e.session.Score(),
			Level:    e.session.Level(),
		})
	}
}

// step runs one simulation step. A panic ends the game instead of the process.
func (e *Engine) step(now time.Time, delta time.Duration) (intents int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Tick %d panicked: %v", e.tickCount, r)
			e.abortSession()
		}
	}()

	intents = e.queue.Drain(MaxIntentsPerTick, e.applyIntent)
	e.session.Update(now, delta)
	return intents
}

func (e *Engine) abortSession() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Abort after panic failed: %v", r)
		}
	}()
	e.session.Abort("internal error")
}

// applyIntent maps one input intent onto the session
func (e *Engine) applyIntent(in input.Intent) {
	switch in.Type {
	case input.IntentUp:
		e.session.SetDirection(Up)
	case input.IntentDown:
		e.session.SetDirection(Down)
	case input.IntentLeft:
		e.session.SetDirection(Left)
	case input.IntentRight:
		e.session.SetDirection(Right)
	case input.IntentPause:
		e.session.TogglePause()
	case input.IntentRestart:
		e.session.Restart()
	case input.IntentMenu:
		e.session.ReturnToMenu()
	case input.IntentStart:
		mode := e.session.Mode()
		if in.Mode != "" {
			m, err := ParseMode(in.Mode)
			if err != nil {
				log.Printf("⚠️ Ignoring start from %s: %v", in.Source, err)
				return
			}
			mode = m
		}
		e.session.Start(mode)
	}
}

// publishSnapshot fills the next pool slot. Caller holds e.mu.
func (e *Engine) publishSnapshot(now time.Time) {
	snap := e.snapshotPool.AcquireWrite(now)
	e.session.FillSnapshot(snap, now)
	e.snapshotPool.PublishWrite()
}

// Snapshot returns a copy of the latest published state
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// Submit queues an intent for the next tick. Returns false if the queue is full.
func (e *Engine) Submit(in input.Intent) bool {
	return e.queue.Enqueue(in)
}

// Queue exposes the intent queue to input handlers
func (e *Engine) Queue() *input.Queue {
	return e.queue
}

// Subscribe registers fn for session events; see EventBus.Subscribe
func (e *Engine) Subscribe(fn func(Event)) func() {
	return e.bus.Subscribe(fn)
}

// SetTickHook installs fn to run after every tick, on the tick goroutine
func (e *Engine) SetTickHook(fn func(TickInfo)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// Config returns the game configuration in use
func (e *Engine) Config() config.GameConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Config()
}

// StartEventLog starts journaling events to filePath
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the event journal
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EngineStats aggregates engine counters for the API
type EngineStats struct {
	Running  bool             `json:"running"`
	TickRate int              `json:"tickRate"`
	Ticks    uint64           `json:"ticks"`
	Seed     int64            `json:"seed"`
	Queue    input.QueueStats `json:"queue"`
	Bus      BusStats         `json:"bus"`
	EventLog EventLogStats    `json:"eventLog"`
}

// Stats returns engine counters
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return EngineStats{
		Running:  e.running,
		TickRate: e.tickRate,
		Ticks:    e.tickCount,
		Seed:     e.rngSeed,
		Queue:    e.queue.Stats(),
		Bus:      e.bus.Stats(),
		EventLog: e.eventLog.GetStats(),
	}
}
