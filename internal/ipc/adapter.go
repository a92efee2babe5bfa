package ipc

import (
	"snake-arena/internal/config"
	"snake-arena/internal/game"
)

// FromSnapshot converts an engine snapshot into its wire form
func FromSnapshot(s game.Snapshot) *SnapshotMessage {
	msg := &SnapshotMessage{
		Sequence:   s.Sequence,
		Timestamp:  s.Timestamp.UnixNano(),
		TickNumber: s.TickNumber,
		State:      s.State.String(),
		Mode:       s.Mode.String(),
		Outcome:    s.Outcome.String(),
		EndReason:  s.EndReason,
		Difficulty: s.Difficulty,
		Score:      s.Score,
		Level:      s.Level,
		FoodEaten:  s.FoodEaten,
		Combo:      s.Combo,
		HighScore:  s.HighScore,
		NewRecord:  s.NewRecord,
		GameTime:   s.GameTime.Milliseconds(),
		Direction:  s.Direction.String(),
		HasFood:    s.HasFood,
		Invincible: s.Invincible,
		Width:      s.Board.Width,
		Height:     s.Board.Height,
		GridSize:   s.Board.GridSize,
	}

	if s.HasFood {
		msg.Food = FoodData{
			X:              s.Food.X,
			Y:              s.Food.Y,
			Kind:           s.Food.Kind.String(),
			Score:          s.Food.Score,
			RemainingRatio: s.Food.RemainingRatio,
			Expires:        s.Food.Expires,
		}
	}

	msg.Snake = make([]Position, len(s.Snake))
	for i, p := range s.Snake {
		msg.Snake[i] = Position{X: p.X, Y: p.Y}
	}

	msg.Obstacles = make([]Position, len(s.Obstacles))
	for i, p := range s.Obstacles {
		msg.Obstacles[i] = Position{X: p.X, Y: p.Y}
	}

	msg.Effects = make([]EffectData, len(s.Effects))
	for i, e := range s.Effects {
		msg.Effects[i] = EffectData{Kind: e.Kind.String(), RemainingMs: e.Remaining.Milliseconds()}
	}

	return msg
}

// ConfigFromGame builds the connect-time config for viewers
func ConfigFromGame(cfg config.GameConfig, tickRate int) ConfigMessage {
	return ConfigMessage{
		Width:      cfg.Board.Width,
		Height:     cfg.Board.Height,
		GridSize:   cfg.Board.GridSize,
		TickRate:   tickRate,
		Mode:       cfg.Mode,
		Difficulty: cfg.Difficulty.Name,
		Boundary:   cfg.Board.Boundary,
	}
}

// Position returns the food's cell origin
func (f FoodData) Position() Position {
	return Position{X: f.X, Y: f.Y}
}

// Cell returns the grid column and row of p
func (m *SnapshotMessage) Cell(p Position) (col, row int) {
	if m.GridSize <= 0 {
		return 0, 0
	}
	return p.X / m.GridSize, p.Y / m.GridSize
}

// Columns returns the board width in cells
func (m *SnapshotMessage) Columns() int {
	if m.GridSize <= 0 {
		return 0
	}
	return m.Width / m.GridSize
}

// Rows returns the board height in cells
func (m *SnapshotMessage) Rows() int {
	if m.GridSize <= 0 {
		return 0
	}
	return m.Height / m.GridSize
}
