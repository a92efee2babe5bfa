package game

import (
	"sync/atomic"
	"time"
)

// SnapshotLimits sizes the pre-allocated snapshot slices.
type SnapshotLimits struct {
	MaxSegments  int // Board cells; a snake can never be longer
	MaxObstacles int
	MaxEffects   int
}

// LimitsForBoard derives snapshot capacities from the board size.
func LimitsForBoard(cols, rows, maxObstacles int) SnapshotLimits {
	return SnapshotLimits{
		MaxSegments:  cols*rows + 1, // +1 for the transient head past a wall
		MaxObstacles: maxObstacles,
		MaxEffects:   3,
	}
}

// FoodSnapshot is an immutable copy of the current food
type FoodSnapshot struct {
	X              int        `json:"x"`
	Y              int        `json:"y"`
	Kind           FoodKind   `json:"kind"`
	Score          int        `json:"score"`
	Effect         EffectKind `json:"effect"`
	RemainingRatio float64    `json:"remainingRatio"`
	Expires        bool       `json:"expires"`
}

// BoardSnapshot carries board geometry so renderers need no config
type BoardSnapshot struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	GridSize int `json:"gridSize"`
}

// Snapshot is a complete immutable view of the session for rendering.
// Slices are pre-allocated by the pool and never grow beyond its limits.
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	State      State   `json:"state"`
	Mode       Mode    `json:"mode"`
	Outcome    Outcome `json:"outcome"`
	EndReason  string  `json:"endReason,omitempty"`
	Difficulty string  `json:"difficulty"`

	Score          int           `json:"score"`
	Level          int           `json:"level"`
	FoodEaten      int           `json:"foodEaten"`
	Combo          int           `json:"combo"`
	MaxCombo       int           `json:"maxCombo"`
	ComboRemaining time.Duration `json:"comboRemainingNs"`
	HighScore      int           `json:"highScore"`
	NewRecord      bool          `json:"newRecord"`
	GameTime       time.Duration `json:"gameTimeNs"`
	MoveInterval   time.Duration `json:"moveIntervalNs"`

	Snake           []Position     `json:"snake"`
	Direction       Direction      `json:"direction"`
	HasFood         bool           `json:"hasFood"`
	Food            FoodSnapshot   `json:"food"`
	Obstacles       []Position     `json:"obstacles"`
	Effects         []EffectStatus `json:"effects"`
	SpeedMultiplier float64        `json:"speedMultiplier"`
	Invincible      bool           `json:"invincible"`

	Board BoardSnapshot `json:"board"`
}

// Clone returns a deep copy that is safe to hand to other goroutines.
func (s *Snapshot) Clone() Snapshot {
	out := *s
	out.Snake = append([]Position(nil), s.Snake...)
	out.Obstacles = append([]Position(nil), s.Obstacles...)
	out.Effects = append([]EffectStatus(nil), s.Effects...)
	return out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering; the engine writes under its lock and readers Clone.
type SnapshotPool struct {
	snapshots [3]Snapshot
	limits    SnapshotLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits SnapshotLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = Snapshot{
			Snake:     make([]Position, 0, limits.MaxSegments),
			Obstacles: make([]Position, 0, limits.MaxObstacles),
			Effects:   make([]EffectStatus, 0, limits.MaxEffects),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from game tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite(now time.Time) *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snake, obstacles, effects := snap.Snake[:0], snap.Obstacles[:0], snap.Effects[:0]
	*snap = Snapshot{Snake: snake, Obstacles: obstacles, Effects: effects}

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = now

	return snap
}

// PublishWrite marks write complete and advances read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot
func (p *SnapshotPool) AcquireRead() *Snapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// Limits returns the capacities the pool was built with
func (p *SnapshotPool) Limits() SnapshotLimits {
	return p.limits
}
