package game

import "time"

// ComboBonusStep is the score bonus per chained food.
const ComboBonusStep = 0.1

// ComboState tracks a chain of food eaten without the window running out.
// Timers are driven by tick delta, not wall-clock reads.
type ComboState struct {
	Count  int           // Foods in the current chain
	Max    int           // Longest chain this session
	Timer  time.Duration // Time left to extend the chain
	Window time.Duration // Timer value after each food
}

// NewComboState returns an empty chain with the given window.
func NewComboState(window time.Duration) ComboState {
	return ComboState{Window: window}
}

// Reset clears the chain (called on session start).
func (c *ComboState) Reset() {
	c.Count = 0
	c.Max = 0
	c.Timer = 0
}

// Bonus returns the multiplier for the next food: 1 + 0.1 per chained food.
func (c *ComboState) Bonus() float64 {
	if c.Count <= 0 {
		return 1
	}
	return 1 + ComboBonusStep*float64(c.Count)
}

// Register extends the chain and restarts the window.
func (c *ComboState) Register() {
	c.Count++
	if c.Count > c.Max {
		c.Max = c.Count
	}
	c.Timer = c.Window
}

// Update counts the window down. Returns true if the chain just broke.
func (c *ComboState) Update(delta time.Duration) bool {
	if c.Timer <= 0 {
		return false
	}
	c.Timer -= delta
	if c.Timer <= 0 {
		c.Timer = 0
		broke := c.Count > 0
		c.Count = 0
		return broke
	}
	return false
}
