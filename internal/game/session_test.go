package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"snake-arena/internal/config"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// mockRecorder captures recorder calls
type mockRecorder struct {
	mu        sync.Mutex
	records   []GameStats
	highScore int
	panics    bool
}

func (m *mockRecorder) RecordGameEnd(stats GameStats) {
	if m.panics {
		panic("disk on fire")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, stats)
}

func (m *mockRecorder) IsNewHighScore(score int, mode Mode) bool {
	if m.panics {
		panic("disk on fire")
	}
	return score > m.highScore
}

func (m *mockRecorder) HighScore(mode Mode) int {
	return m.highScore
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// eventSink captures notifier events
type eventSink struct {
	events []Event
}

func (s *eventSink) Notify(e Event) { s.events = append(s.events, e) }

func (s *eventSink) topics() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Topic
	}
	return out
}

func (s *eventSink) has(topic string) bool {
	for _, e := range s.events {
		if e.Topic == topic {
			return true
		}
	}
	return false
}

type testSession struct {
	*Session
	clock    *ManualClock
	recorder *mockRecorder
	sink     *eventSink
}

func newTestSession(t *testing.T, cfg config.GameConfig) *testSession {
	t.Helper()
	clock := NewManualClock(testEpoch)
	rec := &mockRecorder{}
	sink := &eventSink{}
	s, err := NewSession(SessionOptions{
		Config:   cfg,
		Rand:     rand.New(rand.NewSource(42)),
		Clock:    clock,
		Recorder: rec,
		Notifier: sink,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return &testSession{Session: s, clock: clock, recorder: rec, sink: sink}
}

// step advances the clock by one move interval and runs a tick
func (ts *testSession) step() {
	d := ts.MoveInterval()
	now := ts.clock.Advance(d)
	ts.Update(now, d)
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.GameConfig)
	}{
		{"zero grid", func(c *config.GameConfig) { c.Board.GridSize = 0 }},
		{"unaligned board", func(c *config.GameConfig) { c.Board.Width = 610 }},
		{"weights over one", func(c *config.GameConfig) { c.FoodWeights.Bonus = 0.5 }},
		{"negative weight", func(c *config.GameConfig) { c.FoodWeights.SpeedUp = -0.1 }},
		{"bad boundary", func(c *config.GameConfig) { c.Board.Boundary = "bounce" }},
		{"bad mode", func(c *config.GameConfig) { c.Mode = "ZEN" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultGame()
			tt.mutate(&cfg)
			if _, err := NewSession(SessionOptions{Config: cfg}); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestSessionStart(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())

	if ts.State() != StateMenu {
		t.Fatalf("Expected menu before start, got %s", ts.State())
	}

	ts.Start(ModeClassic)

	if ts.State() != StatePlaying {
		t.Errorf("Expected playing, got %s", ts.State())
	}
	if head := ts.snake.Head(); head != (Position{X: 300, Y: 300}) {
		t.Errorf("Expected head at (300,300), got %+v", head)
	}
	if ts.snake.Len() != 1 {
		t.Errorf("Expected length 1, got %d", ts.snake.Len())
	}
	if ts.snake.Direction() != Right {
		t.Errorf("Expected heading right, got %s", ts.snake.Direction())
	}
	if ts.food == nil {
		t.Fatal("Expected food after start")
	}
	if ts.snake.Occupies(ts.food.Position) {
		t.Error("Food spawned on the snake")
	}
	if len(ts.Obstacles()) != 0 {
		t.Errorf("Expected no obstacles in classic, got %d", len(ts.Obstacles()))
	}
	if ts.Score() != 0 || ts.Level() != 1 {
		t.Errorf("Expected score 0 level 1, got %d/%d", ts.Score(), ts.Level())
	}
	if !ts.sink.has("gameStart") {
		t.Errorf("Expected gameStart event, got %v", ts.sink.topics())
	}
}

func TestSessionMovesOnInterval(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.food = nil

	// Half an interval: no move
	now := ts.clock.Advance(ts.MoveInterval() / 2)
	ts.Update(now, ts.MoveInterval()/2)
	if head := ts.snake.Head(); head.X != 300 {
		t.Errorf("Expected no move before interval, head at %+v", head)
	}

	now = ts.clock.Advance(ts.MoveInterval() / 2)
	ts.Update(now, ts.MoveInterval()/2)
	if head := ts.snake.Head(); head.X != 320 {
		t.Errorf("Expected move to x=320, head at %+v", head)
	}
}

func TestSessionScoreWithCombo(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)

	table := DefaultFoodTable()
	ts.food = NewFood(Position{X: 320, Y: 300}, table.Spec(FoodNormal), ts.clock.Now())
	ts.combo.Count = 4
	ts.combo.Timer = ts.cfg.ComboWindow

	ts.step()

	if ts.Score() != 14 {
		t.Errorf("Expected score 14 (10 x 1.0 x 1.4), got %d", ts.Score())
	}
	if ts.Combo().Count != 5 {
		t.Errorf("Expected combo 5, got %d", ts.Combo().Count)
	}
	if ts.FoodEaten() != 1 {
		t.Errorf("Expected 1 food eaten, got %d", ts.FoodEaten())
	}
	if !ts.snake.GrowPending() {
		t.Error("Expected growth pending after eating")
	}
	if !ts.sink.has("ate:NORMAL") {
		t.Errorf("Expected ate:NORMAL event, got %v", ts.sink.topics())
	}
	if ts.food == nil || ts.food.Position == (Position{X: 320, Y: 300}) {
		t.Error("Expected a replacement food elsewhere")
	}
}

func TestSessionScoreUsesDifficultyMultiplier(t *testing.T) {
	tests := []struct {
		difficulty string
		base       FoodKind
		want       int
	}{
		{"easy", FoodNormal, 8},
		{"normal", FoodBonus, 50},
		{"hard", FoodNormal, 12},
		{"expert", FoodSlowDown, 22},
	}

	for _, tt := range tests {
		t.Run(tt.difficulty, func(t *testing.T) {
			cfg := config.DefaultGame()
			cfg.Difficulty, _ = config.LookupDifficulty(tt.difficulty)
			ts := newTestSession(t, cfg)
			ts.Start(ModeClassic)

			table := DefaultFoodTable()
			ts.food = NewFood(Position{X: 320, Y: 300}, table.Spec(tt.base), ts.clock.Now())
			ts.step()

			if ts.Score() != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, ts.Score())
			}
		})
	}
}

func TestSessionLevelUp(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.score = 195

	table := DefaultFoodTable()
	ts.food = NewFood(Position{X: 320, Y: 300}, table.Spec(FoodNormal), ts.clock.Now())
	ts.step()

	if ts.Score() != 205 {
		t.Fatalf("Expected score 205, got %d", ts.Score())
	}
	if ts.Level() != 2 {
		t.Errorf("Expected level 2, got %d", ts.Level())
	}
	if !ts.sink.has("levelUp") {
		t.Errorf("Expected levelUp event, got %v", ts.sink.topics())
	}
	if ts.MoveInterval() != 140*time.Millisecond {
		t.Errorf("Expected 140ms interval at level 2, got %v", ts.MoveInterval())
	}
}

func TestSessionLevelNeverSkipsPastMax(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		score     int
		foodScore int
		wantLevel int
		wantEvent bool
	}{
		{"reaches max", 19, 3790, 10, 20, true},                 // 3800 -> level 20
		{"jump past max keeps level", 19, 3790, 300, 19, false}, // 4090 -> level 21
		{"already at max", 20, 3990, 10, 20, false},             // 4000 -> level 21
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t, config.DefaultGame())
			ts.Start(ModeClassic)
			ts.level = tt.level
			ts.score = tt.score

			table := DefaultFoodTable()
			spec := table.Spec(FoodNormal)
			spec.Score = tt.foodScore
			ts.food = NewFood(Position{X: 320, Y: 300}, spec, ts.clock.Now())
			ts.step()

			if want := tt.score + tt.foodScore; ts.Score() != want {
				t.Fatalf("Expected score %d, got %d", want, ts.Score())
			}
			if ts.Level() != tt.wantLevel {
				t.Errorf("Expected level %d, got %d", tt.wantLevel, ts.Level())
			}
			if got := ts.sink.has("levelUp"); got != tt.wantEvent {
				t.Errorf("Expected levelUp event %v, got %v", tt.wantEvent, got)
			}
		})
	}
}

func TestSessionBaseInterval(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		level int
		want  time.Duration
	}{
		{"classic level 1", ModeClassic, 1, 150 * time.Millisecond},
		{"classic level 5", ModeClassic, 5, 110 * time.Millisecond},
		{"classic floor", ModeClassic, 20, 50 * time.Millisecond},
		{"endless ignores level", ModeEndless, 5, 150 * time.Millisecond},
		{"challenge level 3", ModeChallenge, 3, 130 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t, config.DefaultGame())
			ts.Start(tt.mode)
			if got := ts.BaseInterval(tt.level); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSessionSpeedEffectChangesInterval(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeChallenge)

	table := DefaultFoodTable()
	ts.food = NewFood(Position{X: 320, Y: 300}, table.Spec(FoodSpeedUp), ts.clock.Now())
	ts.step()
	ts.food = nil

	if !ts.snake.HasEffect(EffectSpeedUp) {
		t.Fatal("Expected speed up effect after eating")
	}
	if ts.MoveInterval() != 100*time.Millisecond {
		t.Errorf("Expected 100ms interval, got %v", ts.MoveInterval())
	}

	// Effect lasts 3s; expiry is reported on the next tick
	now := ts.clock.Advance(3 * time.Second)
	ts.Update(now, 3*time.Second)
	if ts.snake.HasEffect(EffectSpeedUp) {
		t.Error("Expected speed up to expire")
	}
	if !ts.sink.has("effectExpired") {
		t.Errorf("Expected effectExpired event, got %v", ts.sink.topics())
	}
}

func TestSessionFoodExpiry(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)

	table := DefaultFoodTable()
	bonus := NewFood(Position{X: 0, Y: 0}, table.Spec(FoodBonus), ts.clock.Now())
	ts.food = bonus

	now := ts.clock.Advance(10*time.Second + time.Millisecond)
	ts.Update(now, 10*time.Second)

	if !ts.sink.has("foodExpired") {
		t.Errorf("Expected foodExpired event, got %v", ts.sink.topics())
	}
	if ts.food == nil || ts.food == bonus {
		t.Error("Expected a new food after expiry")
	}
	if ts.State() != StatePlaying {
		t.Errorf("Expected still playing, got %s", ts.State())
	}
}

func TestSessionComboExpires(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.food = nil
	ts.combo.Register()

	now := ts.clock.Advance(time.Second)
	ts.Update(now, time.Second)
	if ts.Combo().Count != 1 {
		t.Errorf("Expected combo alive after 1s, got %d", ts.Combo().Count)
	}

	now = ts.clock.Advance(2 * time.Second)
	ts.Update(now, 2*time.Second)
	if ts.Combo().Count != 0 {
		t.Errorf("Expected combo reset after window, got %d", ts.Combo().Count)
	}
	if ts.Combo().Max != 1 {
		t.Errorf("Expected max combo 1, got %d", ts.Combo().Max)
	}
}

func TestSessionWallCollisionIsTerminal(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.food = nil

	// 300 -> 600 is 15 moves
	for i := 0; i < 15; i++ {
		ts.step()
	}

	if ts.State() != StateGameOver {
		t.Fatalf("Expected game over, got %s", ts.State())
	}
	if ts.Outcome() != OutcomeLost {
		t.Errorf("Expected lost, got %s", ts.Outcome())
	}
	if ts.recorder.count() != 1 {
		t.Fatalf("Expected 1 record, got %d", ts.recorder.count())
	}
	if ts.recorder.records[0].Outcome != OutcomeLost {
		t.Errorf("Expected recorded outcome lost, got %s", ts.recorder.records[0].Outcome)
	}

	head := ts.snake.Head()
	gameTime := ts.GameTime(ts.clock.Now())
	for i := 0; i < 5; i++ {
		ts.step()
	}

	if ts.recorder.count() != 1 {
		t.Errorf("Expected still 1 record, got %d", ts.recorder.count())
	}
	if ts.snake.Head() != head {
		t.Error("Snake moved after game over")
	}
	if ts.GameTime(ts.clock.Now()) != gameTime {
		t.Error("Game time kept running after game over")
	}
}

func TestSessionWrapBoundary(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.Board.Boundary = config.BoundaryWrap
	ts := newTestSession(t, cfg)
	ts.Start(ModeClassic)
	ts.food = nil
	ts.snake.body[0] = Position{X: 580, Y: 300}

	ts.step()

	if ts.State() != StatePlaying {
		t.Fatalf("Expected playing after wrap, got %s", ts.State())
	}
	if head := ts.snake.Head(); head != (Position{X: 0, Y: 300}) {
		t.Errorf("Expected head wrapped to (0,300), got %+v", head)
	}
}

func TestSessionObstacleCollision(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeChallenge)
	ts.food = nil
	ts.obstacles = []Position{{X: 320, Y: 300}}

	ts.step()

	if ts.State() != StateGameOver {
		t.Errorf("Expected game over on obstacle, got %s", ts.State())
	}
}

func TestSessionSelfCollision(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.food = nil
	// Heading right; the cell ahead is part of the body
	ts.snake.body = []Position{{X: 300, Y: 300}, {X: 300, Y: 320}, {X: 320, Y: 320}, {X: 320, Y: 300}, {X: 340, Y: 300}}

	ts.step()

	if ts.State() != StateGameOver {
		t.Errorf("Expected game over on self collision, got %s", ts.State())
	}
}

func TestSessionWinWhenBoardFull(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.Board.Width = 20
	cfg.Board.Height = 20
	ts := newTestSession(t, cfg)

	ts.Start(ModeClassic)

	if ts.State() != StateGameOver {
		t.Fatalf("Expected game over, got %s", ts.State())
	}
	if ts.Outcome() != OutcomeWon {
		t.Errorf("Expected won, got %s", ts.Outcome())
	}
	if !ts.sink.has("gameWon") {
		t.Errorf("Expected gameWon event, got %v", ts.sink.topics())
	}
	if ts.recorder.count() != 1 {
		t.Errorf("Expected 1 record, got %d", ts.recorder.count())
	}
}

func TestSessionObstaclesOnTinyBoard(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.Board.Width = 100
	cfg.Board.Height = 100
	cfg.Difficulty, _ = config.LookupDifficulty("expert")
	ts := newTestSession(t, cfg)

	ts.Start(ModeChallenge)

	// Every cell of a 5x5 board is within 3 cells of the center
	if n := len(ts.Obstacles()); n != 0 {
		t.Errorf("Expected 0 obstacles, got %d", n)
	}
	if ts.State() != StatePlaying {
		t.Errorf("Expected playing, got %s", ts.State())
	}
}

func TestSessionObstaclePlacementRules(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.Board.Width = 120
	cfg.Board.Height = 120
	cfg.Difficulty, _ = config.LookupDifficulty("expert")

	for seed := int64(1); seed <= 20; seed++ {
		ts := newTestSession(t, cfg)
		ts.rng = rand.New(rand.NewSource(seed))
		ts.Start(ModeChallenge)

		obstacles := ts.Obstacles()
		if len(obstacles) > cfg.Difficulty.ObstacleCount {
			t.Fatalf("seed %d: Expected at most %d obstacles, got %d", seed, cfg.Difficulty.ObstacleCount, len(obstacles))
		}

		seen := make(map[Position]bool)
		for _, o := range obstacles {
			if seen[o] {
				t.Errorf("seed %d: duplicate obstacle %+v", seed, o)
			}
			seen[o] = true
			if ts.snake.Occupies(o) {
				t.Errorf("seed %d: obstacle on snake %+v", seed, o)
			}
			if ts.food != nil && ts.food.Position == o {
				t.Errorf("seed %d: obstacle on food %+v", seed, o)
			}
			if d := Distance(o, ts.snake.Head()); d < 60 {
				t.Errorf("seed %d: obstacle %+v too close (%.1f)", seed, o, d)
			}
		}
	}
}

func TestSessionPause(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())

	if ts.TogglePause() {
		t.Error("Expected pause to be ignored in menu")
	}
	if ts.State() != StateMenu {
		t.Errorf("Expected menu, got %s", ts.State())
	}

	ts.Start(ModeClassic)
	ts.food = nil

	if !ts.TogglePause() {
		t.Fatal("Expected paused")
	}
	ts.step()
	if head := ts.snake.Head(); head.X != 300 {
		t.Errorf("Expected no movement while paused, head at %+v", head)
	}

	if ts.TogglePause() {
		t.Error("Expected resumed")
	}
	ts.step()
	if head := ts.snake.Head(); head.X != 320 {
		t.Errorf("Expected movement after resume, head at %+v", head)
	}
	if !ts.sink.has("paused") || !ts.sink.has("resumed") {
		t.Errorf("Expected paused and resumed events, got %v", ts.sink.topics())
	}
}

func TestSessionAbortEndsGame(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)

	ts.Abort("internal error")

	if ts.State() != StateGameOver {
		t.Fatalf("Expected game over, got %s", ts.State())
	}
	if ts.Outcome() != OutcomeLost {
		t.Errorf("Expected lost outcome, got %s", ts.Outcome())
	}
	if ts.recorder.count() != 1 {
		t.Errorf("Expected 1 record, got %d", ts.recorder.count())
	}

	// A second abort is a no-op
	ts.Abort("again")
	if ts.recorder.count() != 1 {
		t.Errorf("Expected still 1 record, got %d", ts.recorder.count())
	}
}

func TestSessionReturnToMenu(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeClassic)
	ts.score = 120

	ts.ReturnToMenu()

	if ts.State() != StateMenu {
		t.Errorf("Expected menu, got %s", ts.State())
	}
	if ts.Score() != 0 || ts.snake != nil || ts.food != nil {
		t.Error("Expected session data cleared")
	}
	if ts.recorder.count() != 0 {
		t.Errorf("Expected no record for aborted game, got %d", ts.recorder.count())
	}
	if ts.SetDirection(Up) {
		t.Error("Expected direction rejected in menu")
	}
}

func TestSessionRestartKeepsMode(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeEndless)
	ts.score = 80

	ts.Restart()

	if ts.Mode() != ModeEndless {
		t.Errorf("Expected endless, got %s", ts.Mode())
	}
	if ts.Score() != 0 || ts.State() != StatePlaying {
		t.Errorf("Expected fresh game, got score %d state %s", ts.Score(), ts.State())
	}
}

func TestSessionNewHighScore(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.recorder.highScore = 10
	ts.Start(ModeClassic)
	ts.score = 50
	ts.food = nil

	for ts.State() == StatePlaying {
		ts.step()
	}

	if !ts.sink.has("newHighScore") {
		t.Errorf("Expected newHighScore event, got %v", ts.sink.topics())
	}

	var snap Snapshot
	ts.FillSnapshot(&snap, ts.clock.Now())
	if !snap.NewRecord || snap.HighScore != 50 {
		t.Errorf("Expected new record 50 in snapshot, got %v/%d", snap.NewRecord, snap.HighScore)
	}
}

func TestSessionSurvivesPanickingRecorder(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.recorder.panics = true
	ts.Start(ModeClassic)
	ts.food = nil

	for i := 0; i < 20 && ts.State() == StatePlaying; i++ {
		ts.step()
	}

	if ts.State() != StateGameOver {
		t.Errorf("Expected game over despite recorder panic, got %s", ts.State())
	}
}

func TestSessionFillSnapshot(t *testing.T) {
	ts := newTestSession(t, config.DefaultGame())
	ts.Start(ModeChallenge)

	var snap Snapshot
	ts.FillSnapshot(&snap, ts.clock.Now())

	if snap.State != StatePlaying || snap.Mode != ModeChallenge {
		t.Errorf("Unexpected state/mode %s/%s", snap.State, snap.Mode)
	}
	if len(snap.Snake) != 1 || snap.Snake[0] != ts.snake.Head() {
		t.Errorf("Unexpected snake %v", snap.Snake)
	}
	if !snap.HasFood || snap.Food.X != ts.food.X || snap.Food.Y != ts.food.Y {
		t.Errorf("Unexpected food %+v", snap.Food)
	}
	if len(snap.Obstacles) != len(ts.Obstacles()) {
		t.Errorf("Expected %d obstacles, got %d", len(ts.Obstacles()), len(snap.Obstacles))
	}
	if snap.Board.GridSize != 20 || snap.Board.Width != 600 {
		t.Errorf("Unexpected board %+v", snap.Board)
	}
	if snap.MoveInterval != 150*time.Millisecond {
		t.Errorf("Expected 150ms interval, got %v", snap.MoveInterval)
	}

	// Readers only ever see copies
	head := ts.snake.Head()
	snap.Snake[0] = Position{X: -20, Y: -20}
	if ts.snake.Head() != head {
		t.Errorf("Expected snake unaffected by snapshot writes, head at %+v", ts.snake.Head())
	}
	if obstacles := ts.Obstacles(); len(obstacles) > 0 {
		obstacles[0] = Position{X: -20, Y: -20}
		if ts.obstacles[0] == obstacles[0] {
			t.Error("Expected Obstacles to return a copy")
		}
	}
}
