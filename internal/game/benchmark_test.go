package game

import (
	"math/rand"
	"testing"
	"time"

	"snake-arena/internal/config"
	"snake-arena/internal/input"
)

func BenchmarkEngineTick(b *testing.B) {
	cfg := config.DefaultGame()
	cfg.Board.Boundary = config.BoundaryWrap
	clock := NewManualClock(testEpoch)
	e, err := NewEngine(EngineConfig{Game: cfg, Seed: 1, Clock: clock})
	if err != nil {
		b.Fatal(err)
	}
	e.Submit(input.Intent{Type: input.IntentStart, Mode: "endless"})
	e.tick()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clock.Advance(16 * time.Millisecond)
		e.tick()
	}
}

func BenchmarkSnapshotClone(b *testing.B) {
	clock := NewManualClock(testEpoch)
	e, err := NewEngine(EngineConfig{Game: config.DefaultGame(), Seed: 1, Clock: clock})
	if err != nil {
		b.Fatal(err)
	}
	e.Submit(input.Intent{Type: input.IntentStart})
	e.tick()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Snapshot()
	}
}

func BenchmarkGenerateRandomKind(b *testing.B) {
	table := DefaultFoodTable()
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.GenerateRandomKind(rng)
	}
}

func BenchmarkCreateAtRandomFreeCell(b *testing.B) {
	table := DefaultFoodTable()
	rng := rand.New(rand.NewSource(1))
	excluded := make([]Position, 0, 200)
	for i := 0; i < 200; i++ {
		excluded = append(excluded, Position{X: (i % 30) * 20, Y: (i / 30) * 20})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CreateAtRandomFreeCell(rng, &table, 20, 600, 600, excluded, testEpoch)
	}
}
