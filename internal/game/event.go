package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeGameStart
	EventTypeFoodEaten
	EventTypeFoodExpired
	EventTypeLevelUp
	EventTypeGameOver
	EventTypeGameWon
	EventTypePaused
	EventTypeResumed
	EventTypeEffectExpired
	EventTypeNewHighScore
	EventTypeMenu
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is a discrete signal emitted by the session.
// Topic is the subscription key, e.g. "ate:BONUS" or "levelUp".
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Assigned by the event log
	TickNum   uint64          `json:"tickNum"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeGameStart:
		return "gameStart"
	case EventTypeFoodEaten:
		return "ate"
	case EventTypeFoodExpired:
		return "foodExpired"
	case EventTypeLevelUp:
		return "levelUp"
	case EventTypeGameOver:
		return "gameOver"
	case EventTypeGameWon:
		return "gameWon"
	case EventTypePaused:
		return "paused"
	case EventTypeResumed:
		return "resumed"
	case EventTypeEffectExpired:
		return "effectExpired"
	case EventTypeNewHighScore:
		return "newHighScore"
	case EventTypeMenu:
		return "menu"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// GameStartPayload describes a fresh session
type GameStartPayload struct {
	Mode       Mode   `json:"mode"`
	Difficulty string `json:"difficulty"`
	Obstacles  int    `json:"obstacles"`
	HighScore  int    `json:"highScore"`
}

// FoodEatenPayload contains scoring details for one food
type FoodEatenPayload struct {
	Kind       FoodKind   `json:"kind"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	BaseScore  int        `json:"baseScore"`
	FinalScore int        `json:"finalScore"`
	Combo      int        `json:"combo"`
	TotalScore int        `json:"totalScore"`
	Effect     EffectKind `json:"effect"`
}

// FoodExpiredPayload names the food that timed out
type FoodExpiredPayload struct {
	Kind FoodKind `json:"kind"`
	X    int      `json:"x"`
	Y    int      `json:"y"`
}

// LevelUpPayload contains the new level and its move interval
type LevelUpPayload struct {
	Level      int   `json:"level"`
	IntervalMs int64 `json:"intervalMs"`
}

// GameEndPayload is shared by gameOver and gameWon
type GameEndPayload struct {
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason"`
	Score     int     `json:"score"`
	Level     int     `json:"level"`
	FoodEaten int     `json:"foodEaten"`
	GameTime  int64   `json:"gameTimeMs"`
}

// EffectExpiredPayload names an effect that ran out
type EffectExpiredPayload struct {
	Effect EffectKind `json:"effect"`
}

// HighScorePayload announces a new record for a mode
type HighScorePayload struct {
	Mode     Mode `json:"mode"`
	Score    int  `json:"score"`
	Previous int  `json:"previous"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event stamped with now
func NewEvent(eventType EventType, topic string, tickNum uint64, now time.Time, payload interface{}) Event {
	if topic == "" {
		topic = eventType.String()
	}
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Topic:     topic,
		Timestamp: now.UnixNano(),
		TickNum:   tickNum,
		Payload:   EncodePayload(payload),
	}
}

// FoodTopic returns the subscription topic for eating kind, e.g. "ate:NORMAL".
func FoodTopic(kind FoodKind) string {
	return "ate:" + kind.String()
}

// Notifier receives session events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }
