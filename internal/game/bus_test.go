package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus(8)

	var a, b atomic.Int32
	bus.Subscribe(func(Event) { a.Add(1) })
	unsubscribe := bus.Subscribe(func(Event) { b.Add(1) })
	bus.Subscribe(func(Event) { panic("bad subscriber") })

	bus.Start()
	bus.Notify(NewEvent(EventTypePaused, "", 1, testEpoch, nil))
	unsubscribe()
	bus.Stop()

	if a.Load() != 1 {
		t.Errorf("Expected 1 delivery to first subscriber, got %d", a.Load())
	}
	if stats := bus.Stats(); stats.Delivered != 1 || stats.Subscribers != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus(2)

	for i := 0; i < 5; i++ {
		bus.Notify(NewEvent(EventTypeResumed, "", uint64(i), testEpoch, nil))
	}

	if stats := bus.Stats(); stats.Dropped != 3 || stats.Pending != 2 {
		t.Errorf("Expected 3 dropped 2 pending, got %+v", stats)
	}
}

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(16)
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	el.Emit(NewEvent(EventTypeGameStart, "", 0, testEpoch, GameStartPayload{Mode: ModeClassic}))
	el.Emit(NewEvent(EventTypeFoodEaten, FoodTopic(FoodBonus), 3, testEpoch, FoodEatenPayload{Kind: FoodBonus, FinalScore: 50}))
	el.Emit(NewEvent(EventTypeGameOver, "", 9, testEpoch, GameEndPayload{Outcome: OutcomeLost, Reason: "wall"}))
	el.Stop()

	if el.Emit(NewEvent(EventTypePaused, "", 10, testEpoch, nil)) {
		t.Error("Expected emit after stop to be rejected")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Sequence != uint64(i+1) {
			t.Errorf("Expected sequence %d, got %d", i+1, ev.Sequence)
		}
	}
	if events[1].Topic != "ate:BONUS" {
		t.Errorf("Expected ate:BONUS, got %s", events[1].Topic)
	}

	var payload FoodEatenPayload
	if err := json.Unmarshal(events[1].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.FinalScore != 50 {
		t.Errorf("Expected final score 50, got %d", payload.FinalScore)
	}

	if stats := el.GetStats(); stats.Written != 3 || stats.Running {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestEventLogRateLimitsTopic(t *testing.T) {
	el := NewEventLog(4096)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 500; i++ {
		if el.Emit(NewEvent(EventTypeFoodEaten, "ate:NORMAL", uint64(i), time.Now(), nil)) {
			accepted++
		}
	}

	if accepted >= 500 {
		t.Errorf("Expected burst on one topic to be limited, accepted %d", accepted)
	}
	if el.GetStats().Dropped == 0 {
		t.Error("Expected dropped events")
	}
}
