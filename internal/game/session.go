package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"snake-arena/internal/config"
)

// Placement tuning
const (
	MaxObstacleAttempts      = 100
	ObstacleClearanceInCells = 3 // Obstacles keep this many cells from the snake
)

// scoreEpsilon absorbs float error so 10*1.0*1.4 floors to 14, not 13.
const scoreEpsilon = 1e-9

// SessionOptions injects the collaborators of a session.
// Only Config is required.
type SessionOptions struct {
	Config   config.GameConfig
	Rand     *rand.Rand
	Clock    Clock
	Recorder Recorder
	Notifier Notifier
}

// Session is the game state machine: snake, food, obstacles, score, level and combo.
// It never blocks and is not safe for concurrent use; the Engine serializes calls.
type Session struct {
	cfg      config.GameConfig
	rng      *rand.Rand
	clock    Clock
	recorder Recorder
	notifier Notifier

	foodTables [3]FoodTable // per Mode

	state     State
	mode      Mode
	rules     ModeRules
	outcome   Outcome
	endReason string

	snake     *Snake
	food      *Food
	obstacles []Position

	score     int
	level     int
	foodEaten int
	combo     ComboState

	startTime time.Time
	endTime   time.Time
	tick      uint64

	highScore int
	newRecord bool
}

// NewSession validates the configuration and returns a session in MENU.
func NewSession(opts SessionOptions) (*Session, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Session{
		cfg:      opts.Config,
		rng:      opts.Rand,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		state:    StateMenu,
		level:    1,
		combo:    NewComboState(opts.Config.ComboWindow),
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Event) {})
	}

	for _, m := range AllModes {
		table, err := NewFoodTable(opts.Config.FoodWeights, m.Rules())
		if err != nil {
			return nil, err
		}
		s.foodTables[m] = table
	}

	if mode, err := ParseMode(opts.Config.Mode); err == nil {
		s.mode = mode
	} else {
		return nil, err
	}

	return s, nil
}

// =============================================================================
// CONTROL SURFACE
// =============================================================================

// Start begins a fresh game in mode, discarding any previous state.
func (s *Session) Start(mode Mode) {
	now := s.clock.Now()

	s.mode = mode
	s.rules = mode.Rules()
	s.state = StatePlaying
	s.outcome = OutcomeNone
	s.endReason = ""
	s.score = 0
	s.level = 1
	s.foodEaten = 0
	s.combo.Reset()
	s.startTime = now
	s.endTime = time.Time{}
	s.tick = 0
	s.newRecord = false
	s.food = nil
	s.obstacles = s.obstacles[:0]

	b := s.cfg.Board
	start := Position{
		X: (b.Width / b.GridSize / 2) * b.GridSize,
		Y: (b.Height / b.GridSize / 2) * b.GridSize,
	}
	s.snake, _ = NewSnake(start, b.GridSize) // grid size validated in NewSession
	s.snake.markMoved(now)

	s.highScore = safeHighScore(s.recorder, mode)

	if !s.spawnFood(now) {
		return
	}
	if s.rules.HasObstacles {
		s.obstacles = s.placeObstacles(s.cfg.Difficulty.ObstacleCount)
	}

	s.emit(EventTypeGameStart, "", now, GameStartPayload{
		Mode:       mode,
		Difficulty: s.cfg.Difficulty.Name,
		Obstacles:  len(s.obstacles),
		HighScore:  s.highScore,
	})
	log.Printf("🐍 %s game started (%s, %d obstacles)", mode, s.cfg.Difficulty.Name, len(s.obstacles))
}

// Restart starts a new game in the current mode.
func (s *Session) Restart() {
	s.Start(s.mode)
}

// ReturnToMenu aborts the game and clears all session data.
func (s *Session) ReturnToMenu() {
	now := s.clock.Now()
	s.state = StateMenu
	s.outcome = OutcomeNone
	s.endReason = ""
	s.snake = nil
	s.food = nil
	s.obstacles = s.obstacles[:0]
	s.score = 0
	s.level = 1
	s.foodEaten = 0
	s.combo.Reset()
	s.newRecord = false
	s.emit(EventTypeMenu, "", now, nil)
}

// TogglePause flips between PLAYING and PAUSED. Returns whether the session is now paused.
// Other states are left alone.
func (s *Session) TogglePause() bool {
	now := s.clock.Now()
	switch s.state {
	case StatePlaying:
		s.state = StatePaused
		s.emit(EventTypePaused, "", now, nil)
		return true
	case StatePaused:
		s.state = StatePlaying
		s.emit(EventTypeResumed, "", now, nil)
	}
	return false
}

// SetDirection forwards a heading to the snake. Returns false for a reversal
// or when no game is active. Malformed directions panic like Snake.SetDirection.
func (s *Session) SetDirection(d Direction) bool {
	if s.snake == nil || (s.state != StatePlaying && s.state != StatePaused) {
		return false
	}
	return s.snake.SetDirection(d)
}

// =============================================================================
// TICK
// =============================================================================

// Update advances the simulation by one tick. It is a no-op unless PLAYING.
func (s *Session) Update(now time.Time, delta time.Duration) {
	if s.state != StatePlaying {
		return
	}
	s.tick++

	for _, kind := range s.snake.UpdateEffects(now) {
		s.emit(EventTypeEffectExpired, "", now, EffectExpiredPayload{Effect: kind})
	}

	if now.Sub(s.snake.LastMoveTime()) >= s.MoveInterval() {
		s.snake.Move()
		if s.cfg.Board.Boundary == config.BoundaryWrap {
			s.snake.WrapHead(s.cfg.Board.Width, s.cfg.Board.Height)
		}
		s.snake.markMoved(now)
	}

	if s.food != nil && s.food.IsExpired(now) {
		expired := s.food
		s.food = nil
		s.emit(EventTypeFoodExpired, "", now, FoodExpiredPayload{Kind: expired.Kind, X: expired.X, Y: expired.Y})
		if !s.spawnFood(now) {
			return
		}
	}

	s.combo.Update(delta)

	s.resolveCollisions(now)
}

// resolveCollisions checks food, wall, self and obstacle in that order.
// Any fatal collision ends the tick.
func (s *Session) resolveCollisions(now time.Time) {
	head := s.snake.Head()

	if s.food != nil && head == s.food.Position {
		s.eatFood(now)
		if s.state != StatePlaying {
			return
		}
	}

	b := s.cfg.Board
	if b.Boundary == config.BoundaryWall && s.snake.CheckWallCollision(b.Width, b.Height) {
		s.gameOver(now, "wall")
		return
	}
	if s.snake.CheckSelfCollision() {
		s.gameOver(now, "self")
		return
	}
	if ContainsPosition(s.obstacles, head) {
		s.gameOver(now, "obstacle")
		return
	}
}

// eatFood scores the current food, grows the snake and spawns a replacement.
func (s *Session) eatFood(now time.Time) {
	f := s.food
	if f == nil {
		return
	}

	s.snake.Grow()

	bonus := s.combo.Bonus()
	final := int(math.Floor(float64(f.Score)*s.cfg.Difficulty.ScoreMultiplier*bonus + scoreEpsilon))
	s.score += final
	s.foodEaten++
	s.combo.Register()

	if f.Effect.SnakeEffect() {
		d := f.EffectDuration
		if d <= 0 {
			d = DefaultEffectDuration
		}
		if err := s.snake.ApplyEffect(f.Effect, d, now); err != nil {
			log.Printf("⚠️ Food effect rejected: %v", err)
		}
	}

	s.emit(EventTypeFoodEaten, FoodTopic(f.Kind), now, FoodEatenPayload{
		Kind:       f.Kind,
		X:          f.X,
		Y:          f.Y,
		BaseScore:  f.Score,
		FinalScore: final,
		Combo:      s.combo.Count,
		TotalScore: s.score,
		Effect:     f.Effect,
	})

	s.checkLevelUp(now)

	s.food = nil
	s.spawnFood(now)
}

// checkLevelUp raises the level when the score crosses a threshold.
// Levels never exceed the configured maximum.
func (s *Session) checkLevelUp(now time.Time) {
	newLevel := s.score/s.cfg.Level.ScorePerLevel + 1
	if newLevel <= s.level || newLevel > s.cfg.Level.MaxLevel {
		return
	}
	s.level = newLevel
	s.emit(EventTypeLevelUp, "", now, LevelUpPayload{
		Level:      s.level,
		IntervalMs: s.MoveInterval().Milliseconds(),
	})
}

// spawnFood places a new food. A full board ends the game as a win.
func (s *Session) spawnFood(now time.Time) bool {
	b := s.cfg.Board
	excluded := make([]Position, 0, s.snake.Len()+len(s.obstacles))
	excluded = s.snake.AppendBody(excluded)
	excluded = append(excluded, s.obstacles...)

	food, ok := CreateAtRandomFreeCell(s.rng, &s.foodTables[s.mode], b.GridSize, b.Width, b.Height, excluded, now)
	if !ok {
		s.win(now)
		return false
	}
	s.food = food
	return true
}

// placeObstacles draws up to count obstacles away from the snake.
// Draws that fail MaxObstacleAttempts times are skipped.
func (s *Session) placeObstacles(count int) []Position {
	b := s.cfg.Board
	minDistance := float64(ObstacleClearanceInCells * b.GridSize)
	obstacles := s.obstacles[:0]

	for i := 0; i < count; i++ {
		for attempt := 0; attempt < MaxObstacleAttempts; attempt++ {
			pos := RandomGridPosition(s.rng, b.GridSize, b.Width, b.Height)
			if s.snake.Occupies(pos) || ContainsPosition(obstacles, pos) {
				continue
			}
			if s.food != nil && s.food.Position == pos {
				continue
			}
			if s.nearSnake(pos, minDistance) {
				continue
			}
			obstacles = append(obstacles, pos)
			break
		}
	}
	return obstacles
}

func (s *Session) nearSnake(p Position, minDistance float64) bool {
	for _, seg := range s.snake.body {
		if Distance(seg, p) < minDistance {
			return true
		}
	}
	return false
}

// =============================================================================
// TERMINAL TRANSITIONS
// =============================================================================

func (s *Session) gameOver(now time.Time, reason string) {
	s.finish(now, OutcomeLost, reason)
}

func (s *Session) win(now time.Time) {
	s.finish(now, OutcomeWon, "board full")
}

// finish moves PLAYING to GAME_OVER exactly once and reports the result.
func (s *Session) finish(now time.Time, outcome Outcome, reason string) {
	if s.state != StatePlaying {
		return
	}
	s.state = StateGameOver
	s.outcome = outcome
	s.endReason = reason
	s.endTime = now

	stats := GameStats{
		Mode:       s.mode,
		Difficulty: s.cfg.Difficulty.Name,
		PlayerName: s.cfg.PlayerName,
		Score:      s.score,
		Level:      s.level,
		FoodEaten:  s.foodEaten,
		MaxCombo:   s.combo.Max,
		GameTime:   now.Sub(s.startTime),
		Outcome:    outcome,
		EndedAt:    now,
	}

	previous := s.highScore
	s.newRecord = safeIsNewHighScore(s.recorder, s.score, s.mode)
	safeRecord(s.recorder, stats)

	evType := EventTypeGameOver
	if outcome == OutcomeWon {
		evType = EventTypeGameWon
	}
	s.emit(evType, "", now, GameEndPayload{
		Outcome:   outcome,
		Reason:    reason,
		Score:     s.score,
		Level:     s.level,
		FoodEaten: s.foodEaten,
		GameTime:  stats.GameTime.Milliseconds(),
	})
	if s.newRecord {
		s.highScore = s.score
		s.emit(EventTypeNewHighScore, "", now, HighScorePayload{Mode: s.mode, Score: s.score, Previous: previous})
	}

	log.Printf("🏁 Game %s (%s): score %d, level %d, food %d, %v",
		outcome, reason, s.score, s.level, s.foodEaten, stats.GameTime.Round(time.Millisecond))
}

// Abort ends a running game as lost. Used by the engine when a tick fails.
func (s *Session) Abort(reason string) {
	s.finish(s.clock.Now(), OutcomeLost, reason)
}

func (s *Session) emit(t EventType, topic string, now time.Time, payload interface{}) {
	safeNotify(s.notifier, NewEvent(t, topic, s.tick, now, payload))
}

// =============================================================================
// QUERIES
// =============================================================================

// BaseInterval is the move interval for level before speed effects.
func (s *Session) BaseInterval(level int) time.Duration {
	d := s.cfg.Difficulty.Speed
	if s.rules.SpeedIncrease {
		d -= time.Duration(level-1) * s.cfg.Level.SpeedIncrease
	}
	if d < s.cfg.Level.MinSpeed {
		d = s.cfg.Level.MinSpeed
	}
	return d
}

// MoveInterval is the current time between move steps.
func (s *Session) MoveInterval() time.Duration {
	base := s.BaseInterval(s.level)
	mult := 1.0
	if s.snake != nil {
		mult = s.snake.SpeedMultiplier()
	}
	return time.Duration(float64(base) / mult)
}

// GameTime returns elapsed play time, frozen once the game has ended.
func (s *Session) GameTime(now time.Time) time.Duration {
	switch s.state {
	case StatePlaying, StatePaused:
		return now.Sub(s.startTime)
	case StateGameOver:
		return s.endTime.Sub(s.startTime)
	}
	return 0
}

func (s *Session) State() State { return s.state }
func (s *Session) Mode() Mode { return s.mode }
func (s *Session) Outcome() Outcome { return s.outcome }
func (s *Session) Score() int { return s.score }
func (s *Session) Level() int { return s.level }
func (s *Session) FoodEaten() int { return s.foodEaten }
func (s *Session) Combo() ComboState { return s.combo }

// Config returns the validated configuration.
func (s *Session) Config() config.GameConfig { return s.cfg }

// Obstacles returns a copy of the obstacle list.
func (s *Session) Obstacles() []Position {
	return append([]Position(nil), s.obstacles...)
}

// FillSnapshot writes the current state into snap, reusing its slices.
func (s *Session) FillSnapshot(snap *Snapshot, now time.Time) {
	b := s.cfg.Board
	snap.TickNumber = s.tick
	snap.State = s.state
	snap.Mode = s.mode
	snap.Outcome = s.outcome
	snap.EndReason = s.endReason
	snap.Difficulty = s.cfg.Difficulty.Name
	snap.Score = s.score
	snap.Level = s.level
	snap.FoodEaten = s.foodEaten
	snap.Combo = s.combo.Count
	snap.MaxCombo = s.combo.Max
	snap.ComboRemaining = s.combo.Timer
	snap.HighScore = s.highScore
	snap.NewRecord = s.newRecord
	snap.GameTime = s.GameTime(now)
	snap.MoveInterval = s.MoveInterval()
	snap.Board = BoardSnapshot{Width: b.Width, Height: b.Height, GridSize: b.GridSize}
	snap.Obstacles = append(snap.Obstacles, s.obstacles...)

	if s.snake != nil {
		snap.Snake = s.snake.AppendBody(snap.Snake)
		snap.Direction = s.snake.Direction()
		snap.SpeedMultiplier = s.snake.SpeedMultiplier()
		snap.Invincible = s.snake.Invincible()
		snap.Effects = append(snap.Effects, s.snake.ActiveEffects(now)...)
	} else {
		snap.SpeedMultiplier = 1
	}

	if s.food != nil {
		snap.HasFood = true
		snap.Food = FoodSnapshot{
			X:              s.food.X,
			Y:              s.food.Y,
			Kind:           s.food.Kind,
			Score:          s.food.Score,
			Effect:         s.food.Effect,
			RemainingRatio: s.food.RemainingTimeRatio(now),
			Expires:        s.food.Lifetime > 0,
		}
	}
}
