package game

import (
	"fmt"
	"strings"
)

// Mode selects the rule set for a session.
type Mode uint8

const (
	ModeClassic Mode = iota
	ModeChallenge
	ModeEndless
)

// AllModes lists every mode in display order.
var AllModes = []Mode{ModeClassic, ModeChallenge, ModeEndless}

// ModeRules are the feature switches of a mode.
type ModeRules struct {
	HasObstacles   bool
	HasSpecialFood bool // speed up, slow down, double score
	HasBonusFood   bool
	SpeedIncrease  bool // level shortens the move interval
}

// Rules returns the feature switches for m.
func (m Mode) Rules() ModeRules {
	switch m {
	case ModeChallenge:
		return ModeRules{HasObstacles: true, HasSpecialFood: true, HasBonusFood: true, SpeedIncrease: true}
	case ModeEndless:
		return ModeRules{HasObstacles: false, HasSpecialFood: true, HasBonusFood: true, SpeedIncrease: false}
	default:
		return ModeRules{HasObstacles: false, HasSpecialFood: false, HasBonusFood: true, SpeedIncrease: true}
	}
}

// String returns the upper-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeClassic:
		return "CLASSIC"
	case ModeChallenge:
		return "CHALLENGE"
	case ModeEndless:
		return "ENDLESS"
	default:
		return fmt.Sprintf("MODE(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode resolves a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLASSIC", "":
		return ModeClassic, nil
	case "CHALLENGE":
		return ModeChallenge, nil
	case "ENDLESS":
		return ModeEndless, nil
	}
	return ModeClassic, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// State is the session lifecycle state.
type State uint8

const (
	StateMenu State = iota
	StatePlaying
	StatePaused
	StateGameOver
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{StateMenu, StatePlaying, StatePaused, StateGameOver} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Outcome says how a finished session ended.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeLost
	OutcomeWon
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeLost:
		return "lost"
	case OutcomeWon:
		return "won"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "lost":
		*o = OutcomeLost
	case "won":
		*o = OutcomeWon
	default:
		*o = OutcomeNone
	}
	return nil
}
