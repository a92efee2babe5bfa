package input

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownIntent is returned for text that names no intent.
var ErrUnknownIntent = errors.New("unknown intent")

// IntentType identifies a player action
type IntentType int

const (
	IntentUnknown IntentType = iota
	IntentUp
	IntentDown
	IntentLeft
	IntentRight
	IntentPause
	IntentRestart
	IntentMenu
	IntentStart
)

// Intent is one player action waiting for the next tick.
type Intent struct {
	Type       IntentType
	Mode       string // Only read for IntentStart; empty keeps the current mode
	Source     string // "http:1.2.3.4", "ws:1.2.3.4", "ipc", ...
	ReceivedAt time.Time
}

// SupportedIntents maps accepted words and keys to intent types
var SupportedIntents = map[string]IntentType{
	// Directions
	"up":    IntentUp,
	"w":     IntentUp,
	"down":  IntentDown,
	"s":     IntentDown,
	"left":  IntentLeft,
	"a":     IntentLeft,
	"right": IntentRight,
	"d":     IntentRight,

	// Controls
	"pause":   IntentPause,
	"p":       IntentPause,
	"space":   IntentPause,
	"restart": IntentRestart,
	"r":       IntentRestart,
	"menu":    IntentMenu,
	"m":       IntentMenu,
	"escape":  IntentMenu,
	"esc":     IntentMenu,
	"start":   IntentStart,
	"enter":   IntentStart,
}

// String returns the canonical name
func (t IntentType) String() string {
	switch t {
	case IntentUp:
		return "up"
	case IntentDown:
		return "down"
	case IntentLeft:
		return "left"
	case IntentRight:
		return "right"
	case IntentPause:
		return "pause"
	case IntentRestart:
		return "restart"
	case IntentMenu:
		return "menu"
	case IntentStart:
		return "start"
	default:
		return "unknown"
	}
}

// IsDirection reports whether the intent steers the snake
func (t IntentType) IsDirection() bool {
	return t >= IntentUp && t <= IntentRight
}

// ParseIntentType resolves a word or key name (case-insensitive)
func ParseIntentType(s string) (IntentType, error) {
	if t, ok := SupportedIntents[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return IntentUnknown, ErrUnknownIntent
}
