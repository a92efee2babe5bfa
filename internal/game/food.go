package game

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"snake-arena/internal/config"
)

// FoodKind enum for food classification
type FoodKind uint8

const (
	FoodNormal FoodKind = iota
	FoodBonus
	FoodSpeedUp
	FoodSlowDown
	FoodDoubleScore
)

// MaxFoodPlacementAttempts bounds the random free-cell search.
const MaxFoodPlacementAttempts = 100

// String returns the upper-case kind name used in event topics.
func (k FoodKind) String() string {
	switch k {
	case FoodNormal:
		return "NORMAL"
	case FoodBonus:
		return "BONUS"
	case FoodSpeedUp:
		return "SPEED_UP"
	case FoodSlowDown:
		return "SLOW_DOWN"
	case FoodDoubleScore:
		return "DOUBLE_SCORE"
	default:
		return fmt.Sprintf("FOOD(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FoodKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FoodKind) UnmarshalText(b []byte) error {
	v, ok := ParseFoodKind(string(b))
	if !ok {
		return fmt.Errorf("unknown food kind %q", b)
	}
	*k = v
	return nil
}

// ParseFoodKind resolves a kind name.
func ParseFoodKind(s string) (FoodKind, bool) {
	for _, k := range foodKindOrder {
		if strings.EqualFold(k.String(), s) {
			return k, true
		}
	}
	return FoodNormal, false
}

// foodKindOrder is the declaration order used for the cumulative draw.
var foodKindOrder = [...]FoodKind{FoodNormal, FoodBonus, FoodSpeedUp, FoodSlowDown, FoodDoubleScore}

// FoodSpec is the static metadata for one food kind.
type FoodSpec struct {
	Kind           FoodKind
	Score          int
	Effect         EffectKind
	EffectDuration time.Duration
	Lifetime       time.Duration // 0 means the food never expires
	Weight         float64
}

// FoodTable holds the spec for every kind, indexed by FoodKind.
type FoodTable [len(foodKindOrder)]FoodSpec

// DefaultFoodTable returns the standard food set.
func DefaultFoodTable() FoodTable {
	return FoodTable{
		FoodNormal:      {Kind: FoodNormal, Score: 10, Effect: EffectNone, Weight: 0.70},
		FoodBonus:       {Kind: FoodBonus, Score: 50, Effect: EffectBonusScore, EffectDuration: 5 * time.Second, Lifetime: 10 * time.Second, Weight: 0.20},
		FoodSpeedUp:     {Kind: FoodSpeedUp, Score: 20, Effect: EffectSpeedUp, EffectDuration: 3 * time.Second, Lifetime: 8 * time.Second, Weight: 0.05},
		FoodSlowDown:    {Kind: FoodSlowDown, Score: 15, Effect: EffectSlowDown, EffectDuration: 5 * time.Second, Lifetime: 8 * time.Second, Weight: 0.03},
		FoodDoubleScore: {Kind: FoodDoubleScore, Score: 30, Effect: EffectDoubleScore, EffectDuration: 10 * time.Second, Lifetime: 12 * time.Second, Weight: 0.02},
	}
}

// NewFoodTable builds a table from configured weights and mode rules.
// Kinds the mode disables contribute their weight to normal food.
func NewFoodTable(w config.FoodWeights, rules ModeRules) (FoodTable, error) {
	t := DefaultFoodTable()
	t[FoodNormal].Weight = w.Normal
	t[FoodBonus].Weight = w.Bonus
	t[FoodSpeedUp].Weight = w.SpeedUp
	t[FoodSlowDown].Weight = w.SlowDown
	t[FoodDoubleScore].Weight = w.DoubleScore

	var sum float64
	for _, spec := range t {
		if spec.Weight < 0 {
			return t, fmt.Errorf("%w: negative weight for %s", ErrInvalidConfig, spec.Kind)
		}
		sum += spec.Weight
	}
	if sum > 1.0+1e-9 {
		return t, fmt.Errorf("%w: food weights sum to %.4f", ErrInvalidConfig, sum)
	}

	if !rules.HasBonusFood {
		t[FoodNormal].Weight += t[FoodBonus].Weight
		t[FoodBonus].Weight = 0
	}
	if !rules.HasSpecialFood {
		for _, k := range []FoodKind{FoodSpeedUp, FoodSlowDown, FoodDoubleScore} {
			t[FoodNormal].Weight += t[k].Weight
			t[k].Weight = 0
		}
	}
	return t, nil
}

// Spec returns the metadata for kind.
func (t *FoodTable) Spec(kind FoodKind) FoodSpec {
	if int(kind) >= len(t) {
		return t[FoodNormal]
	}
	return t[kind]
}

// GenerateRandomKind draws a kind from the categorical distribution.
// Cumulative weights are walked in declaration order; leftover mass maps to normal.
func (t *FoodTable) GenerateRandomKind(rng *rand.Rand) FoodKind {
	r := rng.Float64()
	var cumulative float64
	for _, k := range foodKindOrder {
		w := t[k].Weight
		if w <= 0 {
			continue
		}
		cumulative += w
		if cumulative >= r {
			return k
		}
	}
	return FoodNormal
}

// Food is the single consumable on the board.
type Food struct {
	Position
	FoodSpec
	SpawnTime time.Time
}

// NewFood creates a food of the given spec at pos.
func NewFood(pos Position, spec FoodSpec, now time.Time) *Food {
	return &Food{Position: pos, FoodSpec: spec, SpawnTime: now}
}

// IsExpired reports whether the food outlived its lifetime. Unbounded food never expires.
func (f *Food) IsExpired(now time.Time) bool {
	if f.Lifetime <= 0 {
		return false
	}
	return now.Sub(f.SpawnTime) > f.Lifetime
}

// RemainingTimeRatio is 1 at spawn and falls to 0 at expiry. Display only.
func (f *Food) RemainingTimeRatio(now time.Time) float64 {
	if f.Lifetime <= 0 {
		return 1
	}
	ratio := 1 - float64(now.Sub(f.SpawnTime))/float64(f.Lifetime)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// CreateAtRandomFreeCell places a random-kind food on a cell not in excluded.
// It gives up after MaxFoodPlacementAttempts draws and returns false; callers
// treat that as a full board.
func CreateAtRandomFreeCell(rng *rand.Rand, table *FoodTable, gridSize, width, height int, excluded []Position, now time.Time) (*Food, bool) {
	for attempt := 0; attempt < MaxFoodPlacementAttempts; attempt++ {
		pos := RandomGridPosition(rng, gridSize, width, height)
		if ContainsPosition(excluded, pos) {
			continue
		}
		kind := table.GenerateRandomKind(rng)
		return NewFood(pos, table.Spec(kind), now), true
	}
	return nil, false
}
