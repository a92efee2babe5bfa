package game

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"snake-arena/internal/config"
)

func TestGenerateRandomKindDistribution(t *testing.T) {
	table := DefaultFoodTable()
	rng := rand.New(rand.NewSource(7))

	const draws = 100000
	counts := make(map[FoodKind]int)
	for i := 0; i < draws; i++ {
		counts[table.GenerateRandomKind(rng)]++
	}

	want := map[FoodKind]float64{
		FoodNormal:      0.70,
		FoodBonus:       0.20,
		FoodSpeedUp:     0.05,
		FoodSlowDown:    0.03,
		FoodDoubleScore: 0.02,
	}
	for kind, p := range want {
		got := float64(counts[kind]) / draws
		if math.Abs(got-p) > 0.01 {
			t.Errorf("%s: Expected frequency %.2f, got %.4f", kind, p, got)
		}
	}
}

func TestNewFoodTableFoldsDisabledKinds(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		wantNormal float64
		wantBonus  float64
		wantSpeed  float64
	}{
		{"classic", ModeClassic, 0.80, 0.20, 0},
		{"challenge", ModeChallenge, 0.70, 0.20, 0.05},
		{"endless", ModeEndless, 0.70, 0.20, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewFoodTable(config.DefaultFoodWeights(), tt.mode.Rules())
			if err != nil {
				t.Fatalf("NewFoodTable failed: %v", err)
			}
			if math.Abs(table[FoodNormal].Weight-tt.wantNormal) > 1e-9 {
				t.Errorf("Expected normal %.2f, got %.2f", tt.wantNormal, table[FoodNormal].Weight)
			}
			if math.Abs(table[FoodBonus].Weight-tt.wantBonus) > 1e-9 {
				t.Errorf("Expected bonus %.2f, got %.2f", tt.wantBonus, table[FoodBonus].Weight)
			}
			if math.Abs(table[FoodSpeedUp].Weight-tt.wantSpeed) > 1e-9 {
				t.Errorf("Expected speed up %.2f, got %.2f", tt.wantSpeed, table[FoodSpeedUp].Weight)
			}
		})
	}
}

func TestNewFoodTableRejectsBadWeights(t *testing.T) {
	w := config.DefaultFoodWeights()
	w.Bonus = 0.9
	if _, err := NewFoodTable(w, ModeChallenge.Rules()); err == nil {
		t.Error("Expected error for weights above 1")
	}

	w = config.DefaultFoodWeights()
	w.SlowDown = -0.01
	if _, err := NewFoodTable(w, ModeChallenge.Rules()); err == nil {
		t.Error("Expected error for negative weight")
	}
}

func TestGenerateRandomKindSkipsZeroWeights(t *testing.T) {
	table, _ := NewFoodTable(config.FoodWeights{DoubleScore: 1}, ModeChallenge.Rules())
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if k := table.GenerateRandomKind(rng); k != FoodDoubleScore {
			t.Fatalf("Expected only double score, got %s", k)
		}
	}
}

func TestFoodExpiry(t *testing.T) {
	table := DefaultFoodTable()

	normal := NewFood(Position{}, table.Spec(FoodNormal), testEpoch)
	if normal.IsExpired(testEpoch.Add(24 * time.Hour)) {
		t.Error("Expected normal food never to expire")
	}
	if normal.RemainingTimeRatio(testEpoch.Add(time.Hour)) != 1 {
		t.Error("Expected ratio 1 for unbounded food")
	}

	bonus := NewFood(Position{}, table.Spec(FoodBonus), testEpoch)
	if bonus.IsExpired(testEpoch.Add(10 * time.Second)) {
		t.Error("Expected bonus alive at exactly its lifetime")
	}
	if !bonus.IsExpired(testEpoch.Add(10*time.Second + time.Millisecond)) {
		t.Error("Expected bonus expired after its lifetime")
	}
	if r := bonus.RemainingTimeRatio(testEpoch.Add(5 * time.Second)); math.Abs(r-0.5) > 1e-9 {
		t.Errorf("Expected ratio 0.5, got %.3f", r)
	}
	if r := bonus.RemainingTimeRatio(testEpoch.Add(time.Minute)); r != 0 {
		t.Errorf("Expected ratio 0, got %.3f", r)
	}
}

func TestCreateAtRandomFreeCell(t *testing.T) {
	table := DefaultFoodTable()
	rng := rand.New(rand.NewSource(3))

	excluded := []Position{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 0, Y: 20}}
	for i := 0; i < 200; i++ {
		f, ok := CreateAtRandomFreeCell(rng, &table, 20, 40, 40, excluded, testEpoch)
		if !ok {
			continue
		}
		if f.Position != (Position{X: 20, Y: 20}) {
			t.Fatalf("Expected the only free cell (20,20), got %+v", f.Position)
		}
	}

	full := append(excluded, Position{X: 20, Y: 20})
	if _, ok := CreateAtRandomFreeCell(rng, &table, 20, 40, 40, full, testEpoch); ok {
		t.Error("Expected no free cell on a full board")
	}
}

func TestParseFoodKind(t *testing.T) {
	for _, k := range []FoodKind{FoodNormal, FoodBonus, FoodSpeedUp, FoodSlowDown, FoodDoubleScore} {
		got, ok := ParseFoodKind(k.String())
		if !ok || got != k {
			t.Errorf("Expected %s, got %s (%v)", k, got, ok)
		}
	}
	if _, ok := ParseFoodKind("POISON"); ok {
		t.Error("Expected unknown kind rejected")
	}
}
