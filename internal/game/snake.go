package game

import (
	"fmt"
	"sort"
	"time"
)

// Snake is the player body plus its heading and timed effects.
// Not safe for concurrent use; the owning Session serializes access.
type Snake struct {
	body             []Position // head at index 0
	direction        Direction
	pendingDirection Direction
	growPending      bool
	gridSize         int

	effects         map[EffectKind]activeEffect
	speedMultiplier float64
	invincible      bool

	lastMoveTime time.Time
}

// NewSnake creates a length-1 snake at start heading right.
func NewSnake(start Position, gridSize int) (*Snake, error) {
	if gridSize <= 0 {
		return nil, fmt.Errorf("%w: grid size %d", ErrInvalidConfig, gridSize)
	}
	return &Snake{
		body:             []Position{start},
		direction:        Right,
		pendingDirection: Right,
		gridSize:         gridSize,
		effects:          make(map[EffectKind]activeEffect, 3),
		speedMultiplier:  1,
	}, nil
}

// SetDirection queues d for the next move. Reversals of the committed
// heading are rejected and leave the pending heading unchanged.
// d must be one of Up, Down, Left or Right; anything else panics with ErrInvalidDirection.
func (s *Snake) SetDirection(d Direction) bool {
	if !d.Valid() {
		panic(fmt.Errorf("%w: (%d,%d)", ErrInvalidDirection, d.DX, d.DY))
	}
	if d.Opposite(s.direction) {
		return false
	}
	s.pendingDirection = d
	return true
}

// Move advances one cell. The tail is kept once if growth is pending.
func (s *Snake) Move() {
	s.direction = s.pendingDirection
	head := s.body[0].Add(s.direction, s.gridSize)

	s.body = append(s.body, Position{})
	copy(s.body[1:], s.body[:len(s.body)-1])
	s.body[0] = head

	if s.growPending {
		s.growPending = false
		return
	}
	s.body = s.body[:len(s.body)-1]
}

// Grow schedules one extra segment on the next move. Repeated calls collapse.
func (s *Snake) Grow() {
	s.growPending = true
}

// WrapHead moves an out-of-bounds head to the opposite edge.
func (s *Snake) WrapHead(width, height int) {
	h := &s.body[0]
	if h.X < 0 {
		h.X = width - s.gridSize
	} else if h.X >= width {
		h.X = 0
	}
	if h.Y < 0 {
		h.Y = height - s.gridSize
	} else if h.Y >= height {
		h.Y = 0
	}
}

// CheckSelfCollision reports whether the head overlaps the body.
func (s *Snake) CheckSelfCollision() bool {
	if s.invincible {
		return false
	}
	head := s.body[0]
	for _, seg := range s.body[1:] {
		if seg == head {
			return true
		}
	}
	return false
}

// CheckWallCollision reports whether the head left [0,width) x [0,height).
func (s *Snake) CheckWallCollision(width, height int) bool {
	if s.invincible {
		return false
	}
	h := s.body[0]
	return h.X < 0 || h.X >= width || h.Y < 0 || h.Y >= height
}

// ApplyEffect starts or restarts a timed effect. Speed effects share one
// multiplier slot, so applying one cancels the other.
func (s *Snake) ApplyEffect(kind EffectKind, duration time.Duration, now time.Time) error {
	if !kind.SnakeEffect() {
		return fmt.Errorf("%w: %s is not a snake effect", ErrInvalidEffect, kind)
	}
	if duration < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrInvalidEffect, duration)
	}

	switch kind {
	case EffectSpeedUp:
		delete(s.effects, EffectSlowDown)
	case EffectSlowDown:
		delete(s.effects, EffectSpeedUp)
	}
	s.effects[kind] = activeEffect{start: now, duration: duration}
	s.recompute()
	return nil
}

// UpdateEffects drops every effect whose duration has elapsed at now.
// Returns the kinds that expired, in a stable order.
func (s *Snake) UpdateEffects(now time.Time) []EffectKind {
	var expired []EffectKind
	for kind, e := range s.effects {
		if e.expired(now) {
			delete(s.effects, kind)
			expired = append(expired, kind)
		}
	}
	if len(expired) > 0 {
		sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
		s.recompute()
	}
	return expired
}

func (s *Snake) recompute() {
	s.speedMultiplier = 1
	if _, ok := s.effects[EffectSpeedUp]; ok {
		s.speedMultiplier = SpeedUpMultiplier
	} else if _, ok := s.effects[EffectSlowDown]; ok {
		s.speedMultiplier = SlowDownMultiplier
	}
	_, s.invincible = s.effects[EffectInvincible]
}

// Head returns the head position.
func (s *Snake) Head() Position { return s.body[0] }

// Len returns the number of segments.
func (s *Snake) Len() int { return len(s.body) }

// Body returns a copy of the segments, head first.
func (s *Snake) Body() []Position {
	out := make([]Position, len(s.body))
	copy(out, s.body)
	return out
}

// AppendBody appends the segments to dst and returns it.
func (s *Snake) AppendBody(dst []Position) []Position {
	return append(dst, s.body...)
}

// Occupies reports whether any segment is at p.
func (s *Snake) Occupies(p Position) bool {
	return ContainsPosition(s.body, p)
}

func (s *Snake) Direction() Direction        { return s.direction }
func (s *Snake) PendingDirection() Direction { return s.pendingDirection }
func (s *Snake) GrowPending() bool           { return s.growPending }
func (s *Snake) SpeedMultiplier() float64    { return s.speedMultiplier }
func (s *Snake) Invincible() bool            { return s.invincible }
func (s *Snake) LastMoveTime() time.Time     { return s.lastMoveTime }

// HasEffect reports whether kind is running.
func (s *Snake) HasEffect(kind EffectKind) bool {
	_, ok := s.effects[kind]
	return ok
}

// ActiveEffects lists running effects sorted by kind.
func (s *Snake) ActiveEffects(now time.Time) []EffectStatus {
	out := make([]EffectStatus, 0, len(s.effects))
	for kind, e := range s.effects {
		out = append(out, EffectStatus{Kind: kind, Remaining: e.remaining(now), Duration: e.duration})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// markMoved records the time of the last move step.
func (s *Snake) markMoved(now time.Time) {
	s.lastMoveTime = now
}
