package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"snake-arena/internal/game"
)

// Write-behind defaults
const (
	DefaultWriteQueueSize = 64
	WriteTimeout          = 5 * time.Second
)

// ServiceOptions configures a Service
type ServiceOptions struct {
	QueueSize int
	Now       func() time.Time
	// OnAchievement runs on the recording goroutine for every new unlock
	OnAchievement func(Achievement)
}

// AchievementStatus is an achievement together with its unlock state
type AchievementStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// ServiceStats are write-behind counters
type ServiceStats struct {
	Pending int    `json:"pending"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

type writeJob struct {
	run  func(ctx context.Context, repo Repository) error
	done chan struct{} // set on flush markers
}

// Service is the game.Recorder backed by a Repository. Reads are served from
// memory; writes are queued to a single worker goroutine.
type Service struct {
	repo        Repository
	leaderboard *Leaderboard

	mu       sync.RWMutex
	stats    Stats
	unlocked map[AchievementID]time.Time

	jobs    chan writeJob
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64

	now           func() time.Time
	onAchievement func(Achievement)
}

var _ game.Recorder = (*Service)(nil)

// NewService loads persisted data from repo and starts the write worker
func NewService(ctx context.Context, repo Repository, opts ServiceOptions) (*Service, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultWriteQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		repo:          repo,
		leaderboard:   NewLeaderboard(MaxHighScores),
		unlocked:      make(map[AchievementID]time.Time),
		jobs:          make(chan writeJob, opts.QueueSize),
		now:           opts.Now,
		onAchievement: opts.OnAchievement,
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.worker()

	log.Printf("✅ Store loaded: %d high scores, %d games, %d achievements",
		len(s.leaderboard.All()), s.stats.TotalGames, len(s.unlocked))
	return s, nil
}

func (s *Service) load(ctx context.Context) error {
	scores, err := s.repo.LoadHighScores(ctx)
	if err != nil {
		return fmt.Errorf("load high scores: %w", err)
	}
	for _, e := range scores {
		s.leaderboard.Add(e)
	}

	stats, err := s.repo.LoadStats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	s.stats = stats

	achievements, err := s.repo.LoadAchievements(ctx)
	if err != nil {
		return fmt.Errorf("load achievements: %w", err)
	}
	for _, a := range achievements {
		s.unlocked[a.ID] = a.UnlockedAt
	}
	return nil
}

// =============================================================================
// RECORDER
// =============================================================================

// RecordGameEnd folds a finished game into memory and queues its persistence.
// Called on the engine tick goroutine, so it never blocks.
func (s *Service) RecordGameEnd(g game.GameStats) {
	if g.EndedAt.IsZero() {
		g.EndedAt = s.now()
	}
	record := GameRecord{ID: uuid.NewString(), GameStats: g}

	s.mu.Lock()
	s.stats.Apply(g)
	stats := s.stats

	already := make(map[AchievementID]bool, len(s.unlocked))
	for id := range s.unlocked {
		already[id] = true
	}
	earned := EvaluateAchievements(g, already)
	unlocks := make([]UnlockedAchievement, 0, len(earned))
	for _, id := range earned {
		s.unlocked[id] = g.EndedAt
		unlocks = append(unlocks, UnlockedAchievement{ID: id, UnlockedAt: g.EndedAt})
	}
	s.mu.Unlock()

	var table []HighScoreEntry
	rank := 0
	if s.leaderboard.Qualifies(g.Score, g.Mode) {
		rank = s.leaderboard.Add(HighScoreEntry{
			ID:         uuid.NewString(),
			Name:       g.PlayerName,
			Score:      g.Score,
			Mode:       g.Mode,
			Difficulty: g.Difficulty,
			Level:      g.Level,
			Date:       g.EndedAt,
		})
		if rank > 0 {
			table = s.leaderboard.Top(g.Mode, MaxHighScores)
		}
	}

	s.enqueue(writeJob{run: func(ctx context.Context, repo Repository) error {
		if err := repo.SaveGame(ctx, record); err != nil {
			return err
		}
		if err := repo.SaveStats(ctx, stats); err != nil {
			return err
		}
		if table != nil {
			if err := repo.ReplaceHighScores(ctx, g.Mode, table); err != nil {
				return err
			}
		}
		for _, a := range unlocks {
			if err := repo.SaveAchievement(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}})

	if rank > 0 {
		log.Printf("🏆 %s score %d ranked #%d", g.Mode, g.Score, rank)
	}
	for _, id := range earned {
		a, _ := LookupAchievement(id)
		log.Printf("🏅 Achievement unlocked: %s", a.Name)
		if s.onAchievement != nil {
			s.onAchievement(a)
		}
	}
}

// IsNewHighScore reports whether score beats the best of mode
func (s *Service) IsNewHighScore(score int, mode game.Mode) bool {
	return score > s.leaderboard.Best(mode)
}

// HighScore returns the best score of mode, 0 when none
func (s *Service) HighScore(mode game.Mode) int {
	return s.leaderboard.Best(mode)
}

// =============================================================================
// QUERIES
// =============================================================================

// HighScores returns up to limit entries of mode, best first
func (s *Service) HighScores(mode game.Mode, limit int) []HighScoreEntry {
	return s.leaderboard.Top(mode, limit)
}

// Stats returns the lifetime totals
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Achievements returns every achievement with its unlock state
func (s *Service) Achievements() []AchievementStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AchievementStatus, 0, len(Achievements))
	for _, a := range Achievements {
		st := AchievementStatus{Achievement: a}
		if at, ok := s.unlocked[a.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = &at
		}
		out = append(out, st)
	}
	return out
}

// RecentGames reads game history from the repository after pending writes land
func (s *Service) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return s.repo.RecentGames(ctx, limit)
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Export returns the portable form of high scores, stats and achievements
func (s *Service) Export() ExportData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := ExportData{
		Version:    ExportVersion,
		ExportedAt: s.now().UTC(),
		HighScores: s.leaderboard.All(),
		Stats:      s.stats,
	}
	for id, at := range s.unlocked {
		data.Achievements = append(data.Achievements, UnlockedAchievement{ID: id, UnlockedAt: at})
	}
	sort.Slice(data.Achievements, func(i, j int) bool {
		return data.Achievements[i].UnlockedAt.Before(data.Achievements[j].UnlockedAt)
	})
	return data
}

// Validate checks data before it replaces anything
func (d ExportData) Validate() error {
	if d.Version < 1 || d.Version > ExportVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidData, d.Version)
	}
	for _, e := range d.HighScores {
		if e.Score < 0 || e.Level < 0 {
			return fmt.Errorf("%w: negative high score %s", ErrInvalidData, e.ID)
		}
	}
	if d.Stats.TotalGames < 0 || d.Stats.TotalScore < 0 || d.Stats.TotalTime < 0 {
		return fmt.Errorf("%w: negative stats", ErrInvalidData)
	}
	for _, a := range d.Achievements {
		if _, ok := LookupAchievement(a.ID); !ok {
			return fmt.Errorf("%w: unknown achievement %q", ErrInvalidData, a.ID)
		}
	}
	return nil
}

// Import replaces high scores, stats and achievements with data.
// Game history is kept.
func (s *Service) Import(ctx context.Context, data ExportData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	for i, e := range data.HighScores {
		if e.ID == "" {
			data.HighScores[i].ID = uuid.NewString()
		}
	}

	if err := s.Flush(ctx); err != nil {
		return err
	}
	if err := s.repo.ReplaceAll(ctx, data); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaderboard.Reset()
	for _, e := range data.HighScores {
		s.leaderboard.Add(e)
	}
	s.stats = data.Stats
	s.stats.recomputeAverages()
	s.unlocked = make(map[AchievementID]time.Time, len(data.Achievements))
	for _, a := range data.Achievements {
		s.unlocked[a.ID] = a.UnlockedAt
	}

	log.Printf("📥 Imported %d high scores, %d achievements", len(data.HighScores), len(data.Achievements))
	return nil
}

// =============================================================================
// WRITE-BEHIND
// =============================================================================

func (s *Service) enqueue(job writeJob) bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return false
	}

	select {
	case s.jobs <- job:
		return true
	default:
		if n := s.dropped.Add(1); n%10 == 1 {
			log.Printf("⚠️ Store write queue full, dropped %d writes", n)
		}
		return false
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		if job.done != nil {
			close(job.done)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
		if err := job.run(ctx, s.repo); err != nil {
			s.failed.Add(1)
			log.Printf("⚠️ Store write failed: %v", err)
		} else {
			s.written.Add(1)
		}
		cancel()
	}
}

// Flush waits until every write queued before the call has been attempted
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return ErrServiceClosed
	}
	// Blocking send: a flush must not be dropped
	select {
	case s.jobs <- writeJob{done: done}:
	case <-ctx.Done():
		s.closeMu.RUnlock()
		return ctx.Err()
	}
	s.closeMu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteStats returns write-behind counters
func (s *Service) WriteStats() ServiceStats {
	return ServiceStats{
		Pending: len(s.jobs),
		Written: s.written.Load(),
		Failed:  s.failed.Load(),
		Dropped: s.dropped.Load(),
	}
}

// Close drains pending writes and closes the repository
func (s *Service) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.closeMu.Unlock()

	s.wg.Wait()
	log.Printf("🛑 Store closed (%d writes, %d failed)", s.written.Load(), s.failed.Load())
	return s.repo.Close()
}
