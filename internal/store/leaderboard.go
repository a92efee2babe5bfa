package store

import (
	"sync"

	"snake-arena/internal/game"
)

// Leaderboard keeps the top high scores of every mode in memory.
//
// Operations:
//   - Qualifies: O(log n)
//   - Add: O(log n)
//   - Top: O(log n + k)
type Leaderboard struct {
	mu       sync.RWMutex
	rankings map[game.Mode]*Ranking
	capacity int
}

// NewLeaderboard creates a leaderboard holding capacity entries per mode
func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = MaxHighScores
	}
	lb := &Leaderboard{
		rankings: make(map[game.Mode]*Ranking, len(game.AllModes)),
		capacity: capacity,
	}
	for _, m := range game.AllModes {
		lb.rankings[m] = NewRanking()
	}
	return lb
}

func (lb *Leaderboard) ranking(mode game.Mode) *Ranking {
	lb.mu.RLock()
	r, ok := lb.rankings[mode]
	lb.mu.RUnlock()
	if ok {
		return r
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()
	if r, ok = lb.rankings[mode]; !ok {
		r = NewRanking()
		lb.rankings[mode] = r
	}
	return r
}

// Best returns the top score of mode, 0 if the table is empty
func (lb *Leaderboard) Best(mode game.Mode) int {
	if e, ok := lb.ranking(mode).At(1); ok {
		return e.Score
	}
	return 0
}

// Qualifies reports whether score would enter the table for mode
func (lb *Leaderboard) Qualifies(score int, mode game.Mode) bool {
	if score <= 0 {
		return false
	}
	r := lb.ranking(mode)
	if r.Len() < lb.capacity {
		return true
	}
	last, ok := r.At(lb.capacity)
	return !ok || score > last.Score
}

// Add inserts e and trims the table. Returns the rank, or 0 if e fell off.
func (lb *Leaderboard) Add(e HighScoreEntry) int {
	r := lb.ranking(e.Mode)
	rank := r.Insert(e)
	r.Trim(lb.capacity)
	if rank > lb.capacity {
		return 0
	}
	return rank
}

// Top returns up to n entries of mode, best first
func (lb *Leaderboard) Top(mode game.Mode, n int) []HighScoreEntry {
	if n <= 0 || n > lb.capacity {
		n = lb.capacity
	}
	return lb.ranking(mode).Range(1, n)
}

// All returns every kept entry across modes
func (lb *Leaderboard) All() []HighScoreEntry {
	var out []HighScoreEntry
	for _, m := range game.AllModes {
		out = append(out, lb.Top(m, lb.capacity)...)
	}
	return out
}

// Reset empties every table
func (lb *Leaderboard) Reset() {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	for _, r := range lb.rankings {
		r.Clear()
	}
}
