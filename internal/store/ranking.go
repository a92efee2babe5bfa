package store

import (
	"math/rand"
	"sync"
)

// Skip list tuning
const (
	maxLevel         = 16
	levelProbability = 0.25
)

// rankNode is a node in the ranking skip list
type rankNode struct {
	entry HighScoreEntry
	next  []*rankNode
	span  []int // Distance to next node at each level
}

// Ranking is a skip list of high score entries ordered best first, with span
// counts for O(log n) rank lookups and range reads.
//
// Order: higher score first, then the earlier date, then the smaller ID.
type Ranking struct {
	mu     sync.RWMutex
	head   *rankNode
	level  int
	length int
	rng    *rand.Rand
}

// NewRanking creates an empty ranking
func NewRanking() *Ranking {
	return &Ranking{
		head: &rankNode{
			next: make([]*rankNode, maxLevel),
			span: make([]int, maxLevel),
		},
		level: 1,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

func ranksBefore(a, b HighScoreEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

func (r *Ranking) randomLevel() int {
	level := 1
	for level < maxLevel && r.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Insert adds e and returns its 1-based rank
func (r *Ranking) Insert(e HighScoreEntry) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var update [maxLevel]*rankNode
	var rank [maxLevel]int

	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		if i < r.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && ranksBefore(x.next[i].entry, e) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	level := r.randomLevel()
	if level > r.level {
		for i := r.level; i < level; i++ {
			rank[i] = 0
			update[i] = r.head
			update[i].span[i] = r.length
		}
		r.level = level
	}

	node := &rankNode{
		entry: e,
		next:  make([]*rankNode, level),
		span:  make([]int, level),
	}
	for i := 0; i < level; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node

		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = (rank[0] - rank[i]) + 1
	}

	// Levels above the new node now span one more element
	for i := level; i < r.level; i++ {
		update[i].span[i]++
	}

	r.length++
	return rank[0] + 1
}

// RemoveAt deletes the entry at rank (1-based). Returns false if out of range.
func (r *Ranking) RemoveAt(rank int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeAt(rank)
}

func (r *Ranking) removeAt(rank int) bool {
	if rank < 1 || rank > r.length {
		return false
	}

	var update [maxLevel]*rankNode
	traversed := 0
	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < rank {
			traversed += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	node := x.next[0]
	for i := 0; i < r.level; i++ {
		if update[i].next[i] == node {
			update[i].span[i] += node.span[i] - 1
			update[i].next[i] = node.next[i]
		} else {
			update[i].span[i]--
		}
	}

	for r.level > 1 && r.head.next[r.level-1] == nil {
		r.level--
	}
	r.length--
	return true
}

// Trim drops entries ranked below n
func (r *Ranking) Trim(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for r.length > n && r.removeAt(r.length) {
		removed++
	}
	return removed
}

// Range returns entries ranked [start, end] (1-based, inclusive)
func (r *Ranking) Range(start, end int) []HighScoreEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if start <= 0 {
		start = 1
	}
	if end > r.length {
		end = r.length
	}
	if start > end {
		return nil
	}

	result := make([]HighScoreEntry, 0, end-start+1)

	traversed := 0
	x := r.head
	for i := r.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}

	for x = x.next[0]; x != nil && traversed < end; x = x.next[0] {
		traversed++
		result = append(result, x.entry)
	}
	return result
}

// At returns the entry at rank (1-based)
func (r *Ranking) At(rank int) (HighScoreEntry, bool) {
	entries := r.Range(rank, rank)
	if len(entries) == 0 {
		return HighScoreEntry{}, false
	}
	return entries[0], true
}

// Len returns the number of entries
func (r *Ranking) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.length
}

// Clear removes all entries
func (r *Ranking) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.head.next {
		r.head.next[i] = nil
		r.head.span[i] = 0
	}
	r.level = 1
	r.length = 0
}
