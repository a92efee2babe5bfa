package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"snake-arena/internal/config"
	"snake-arena/internal/input"
)

// =============================================================================
// INTEGRATION TESTS: GAME LOOP UNDER READER AND INPUT PRESSURE
// =============================================================================

// TestIntegration_GameLoopWithRenderPressure runs the real ticker while
// renderers read snapshots and clients submit intents concurrently.
func TestIntegration_GameLoopWithRenderPressure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	cfg := config.DefaultGame()
	cfg.Board.Boundary = config.BoundaryWrap // keep the snake alive
	e, err := NewEngine(EngineConfig{TickRate: 120, Game: cfg, Seed: 1})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var events atomic.Int64
	e.Subscribe(func(Event) { events.Add(1) })

	e.Start()
	defer e.Stop()
	e.Submit(input.Intent{Type: input.IntentStart, Mode: "endless"})

	var (
		snapshots  atomic.Int64
		outOfOrder atomic.Int64
	)

	stopChan := make(chan struct{})
	var wg sync.WaitGroup

	// Renderers
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stopChan:
					return
				default:
				}
				snap := e.Snapshot()
				if snap.Sequence < last {
					outOfOrder.Add(1)
				}
				last = snap.Sequence
				snapshots.Add(1)
				time.Sleep(time.Millisecond)
			}
		}()
	}

	// Input
	wg.Add(1)
	go func() {
		defer wg.Done()
		turns := []input.IntentType{input.IntentUp, input.IntentLeft, input.IntentDown, input.IntentRight}
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				e.Submit(input.Intent{Type: turns[i%len(turns)], Source: "test"})
			}
		}
	}()

	time.Sleep(time.Second)
	close(stopChan)
	wg.Wait()

	stats := e.Stats()
	t.Logf("ticks=%d snapshots=%d events=%d queue=%+v", stats.Ticks, snapshots.Load(), events.Load(), stats.Queue)

	if stats.Ticks < 30 {
		t.Errorf("Expected the loop to keep ticking, got %d ticks", stats.Ticks)
	}
	if outOfOrder.Load() != 0 {
		t.Errorf("Expected monotonic snapshots, got %d out of order", outOfOrder.Load())
	}
	if stats.Queue.Dropped != 0 {
		t.Errorf("Expected no dropped intents, got %d", stats.Queue.Dropped)
	}
	if events.Load() == 0 {
		t.Error("Expected at least the gameStart event")
	}
}
