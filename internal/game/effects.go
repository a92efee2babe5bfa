package game

import (
	"fmt"
	"time"
)

// EffectKind identifies a timed modifier. Only speed and invincibility effects
// live on the snake; bonus and double score are food metadata.
type EffectKind uint8

const (
	EffectNone EffectKind = iota
	EffectSpeedUp
	EffectSlowDown
	EffectInvincible
	EffectBonusScore
	EffectDoubleScore
)

// Effect tuning
const (
	SpeedUpMultiplier     = 1.5
	SlowDownMultiplier    = 0.7
	InvincibleDuration    = 5 * time.Second
	DefaultEffectDuration = 5 * time.Second
)

// String returns the wire name of the effect
func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectSpeedUp:
		return "speed_up"
	case EffectSlowDown:
		return "slow_down"
	case EffectInvincible:
		return "invincible"
	case EffectBonusScore:
		return "bonus_score"
	case EffectDoubleScore:
		return "double_score"
	default:
		return fmt.Sprintf("effect(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler so effects serialize by name.
func (k EffectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EffectKind) UnmarshalText(b []byte) error {
	for v := EffectNone; v <= EffectDoubleScore; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown effect %q", b)
}

// SnakeEffect reports whether the effect is applied to the snake body.
func (k EffectKind) SnakeEffect() bool {
	return k == EffectSpeedUp || k == EffectSlowDown || k == EffectInvincible
}

// activeEffect is one running timed effect.
type activeEffect struct {
	start    time.Time
	duration time.Duration
}

func (e activeEffect) expired(now time.Time) bool {
	return now.Sub(e.start) >= e.duration
}

func (e activeEffect) remaining(now time.Time) time.Duration {
	r := e.duration - now.Sub(e.start)
	if r < 0 {
		return 0
	}
	return r
}

// EffectStatus is a read-only view of a running effect.
type EffectStatus struct {
	Kind      EffectKind    `json:"kind"`
	Remaining time.Duration `json:"remainingNs"`
	Duration  time.Duration `json:"durationNs"`
}
