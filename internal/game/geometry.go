package game

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Position is a grid-aligned pixel coordinate (multiples of the grid size).
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Add returns p moved by d scaled to one grid cell.
func (p Position) Add(d Direction, gridSize int) Position {
	return Position{X: p.X + d.DX*gridSize, Y: p.Y + d.DY*gridSize}
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ContainsPosition reports whether p is in list.
func ContainsPosition(list []Position, p Position) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

// RandomGridPosition draws a uniform grid-aligned cell inside width x height.
func RandomGridPosition(rng *rand.Rand, gridSize, width, height int) Position {
	cols := width / gridSize
	rows := height / gridSize
	return Position{
		X: rng.Intn(cols) * gridSize,
		Y: rng.Intn(rows) * gridSize,
	}
}

// Direction is a unit heading on the grid.
type Direction struct {
	DX int `json:"dx" msgpack:"dx"`
	DY int `json:"dy" msgpack:"dy"`
}

var (
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// Opposite reports whether d and o point in opposite directions.
func (d Direction) Opposite(o Direction) bool {
	return d.DX == -o.DX && d.DY == -o.DY
}

// Valid reports whether d is one of the four unit headings.
func (d Direction) Valid() bool {
	return d == Up || d == Down || d == Left || d == Right
}

// String returns the lowercase name of the heading.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("invalid(%d,%d)", d.DX, d.DY)
	}
}

// ParseDirection resolves "up", "down", "left" or "right" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Direction{}, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}
