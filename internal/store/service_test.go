package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"snake-arena/internal/game"
)

func openTestRepo(t *testing.T, path string) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return repo
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "snake.db")
	svc, err := NewService(context.Background(), openTestRepo(t, path), ServiceOptions{
		Now: func() time.Time { return baseDate },
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, path
}

func finished(mode game.Mode, score int, mutate ...func(*game.GameStats)) game.GameStats {
	g := game.GameStats{
		Mode:       mode,
		Difficulty: "NORMAL",
		PlayerName: "tester",
		Score:      score,
		Level:      1,
		FoodEaten:  score / 10,
		GameTime:   time.Minute,
		Outcome:    game.OutcomeLost,
		EndedAt:    baseDate.Add(time.Duration(score) * time.Second),
	}
	for _, m := range mutate {
		m(&g)
	}
	return g
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "repo.db"))
	defer repo.Close()

	t.Run("stats default to zero", func(t *testing.T) {
		s, err := repo.LoadStats(ctx)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s.TotalGames != 0 {
			t.Errorf("Expected 0 games, got %d", s.TotalGames)
		}
	})

	t.Run("stats averages recomputed on load", func(t *testing.T) {
		in := Stats{TotalGames: 4, TotalScore: 400, TotalTime: 8 * time.Minute, HighScore: 200}
		if err := repo.SaveStats(ctx, in); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		out, _ := repo.LoadStats(ctx)
		if out.AverageScore != 100 {
			t.Errorf("Expected average score 100, got %v", out.AverageScore)
		}
		if out.AverageTime != 2*time.Minute {
			t.Errorf("Expected average time 2m, got %v", out.AverageTime)
		}
	})

	t.Run("replace high scores is per mode", func(t *testing.T) {
		classic := []HighScoreEntry{entry("c1", 100, 0), entry("c2", 90, 0)}
		endless := entry("e1", 500, 0)
		endless.Mode = game.ModeEndless

		if err := repo.ReplaceHighScores(ctx, game.ModeClassic, classic); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if err := repo.ReplaceHighScores(ctx, game.ModeEndless, []HighScoreEntry{endless}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if err := repo.ReplaceHighScores(ctx, game.ModeClassic, classic[:1]); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		all, err := repo.LoadHighScores(ctx)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(all))
		}
		for _, e := range all {
			if e.ID == "c2" {
				t.Error("Expected c2 to be replaced")
			}
		}
	})

	t.Run("achievement keeps first unlock time", func(t *testing.T) {
		first := UnlockedAchievement{ID: AchievementFirstFood, UnlockedAt: baseDate}
		again := UnlockedAchievement{ID: AchievementFirstFood, UnlockedAt: baseDate.Add(time.Hour)}
		repo.SaveAchievement(ctx, first)
		repo.SaveAchievement(ctx, again)

		list, _ := repo.LoadAchievements(ctx)
		if len(list) != 1 {
			t.Fatalf("Expected 1 achievement, got %d", len(list))
		}
		if !list[0].UnlockedAt.Equal(baseDate) {
			t.Errorf("Expected %v, got %v", baseDate, list[0].UnlockedAt)
		}
	})

	t.Run("recent games newest first", func(t *testing.T) {
		for i, score := range []int{10, 30, 20} {
			rec := GameRecord{ID: string(rune('a' + i)), GameStats: finished(game.ModeClassic, score)}
			if err := repo.SaveGame(ctx, rec); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		games, err := repo.RecentGames(ctx, 2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(games) != 2 || games[0].Score != 30 || games[1].Score != 20 {
			t.Errorf("Expected scores [30 20], got %+v", games)
		}
		if games[0].Outcome != game.OutcomeLost {
			t.Errorf("Expected outcome lost, got %v", games[0].Outcome)
		}
	})
}

func TestServiceRecordGameEnd(t *testing.T) {
	svc, _ := newTestService(t)

	svc.RecordGameEnd(finished(game.ModeClassic, 120))
	svc.RecordGameEnd(finished(game.ModeClassic, 80, func(g *game.GameStats) {
		g.Outcome = game.OutcomeWon
	}))
	svc.RecordGameEnd(finished(game.ModeClassic, 0))

	stats := svc.Stats()
	if stats.TotalGames != 3 {
		t.Errorf("Expected 3 games, got %d", stats.TotalGames)
	}
	if stats.GamesWon != 1 || stats.GamesLost != 2 {
		t.Errorf("Expected 1 won / 2 lost, got %d / %d", stats.GamesWon, stats.GamesLost)
	}
	if stats.HighScore != 120 {
		t.Errorf("Expected high score 120, got %d", stats.HighScore)
	}

	scores := svc.HighScores(game.ModeClassic, 10)
	if len(scores) != 2 {
		t.Fatalf("Expected 2 high scores (zero excluded), got %d", len(scores))
	}
	if scores[0].Score != 120 || scores[0].Name != "tester" || scores[0].ID == "" {
		t.Errorf("Unexpected top entry %+v", scores[0])
	}
	if svc.HighScore(game.ModeChallenge) != 0 {
		t.Errorf("Expected empty challenge best, got %d", svc.HighScore(game.ModeChallenge))
	}
}

func TestServiceIsNewHighScore(t *testing.T) {
	svc, _ := newTestService(t)
	svc.RecordGameEnd(finished(game.ModeEndless, 200))

	tests := []struct {
		score int
		mode  game.Mode
		want  bool
	}{
		{199, game.ModeEndless, false},
		{200, game.ModeEndless, false},
		{201, game.ModeEndless, true},
		{1, game.ModeClassic, true},
		{0, game.ModeClassic, false},
	}
	for _, tt := range tests {
		if got := svc.IsNewHighScore(tt.score, tt.mode); got != tt.want {
			t.Errorf("IsNewHighScore(%d, %s): expected %v, got %v", tt.score, tt.mode, tt.want, got)
		}
	}
}

func TestServiceAchievements(t *testing.T) {
	var notified []AchievementID
	path := filepath.Join(t.TempDir(), "ach.db")
	svc, err := NewService(context.Background(), openTestRepo(t, path), ServiceOptions{
		OnAchievement: func(a Achievement) { notified = append(notified, a.ID) },
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	svc.RecordGameEnd(finished(game.ModeChallenge, 1200, func(g *game.GameStats) {
		g.FoodEaten = 12
		g.GameTime = 25 * time.Second
		g.Level = 10
	}))
	svc.RecordGameEnd(finished(game.ModeChallenge, 1300, func(g *game.GameStats) {
		g.FoodEaten = 1
	}))

	want := map[AchievementID]bool{
		AchievementFirstFood:   true,
		AchievementSpeedDemon:  true,
		AchievementScoreMaster: true,
		AchievementLevelUp:     true,
	}
	if len(notified) != len(want) {
		t.Fatalf("Expected %d unlocks, got %v", len(want), notified)
	}
	for _, st := range svc.Achievements() {
		if st.Unlocked != want[st.ID] {
			t.Errorf("%s: expected unlocked=%v, got %v", st.ID, want[st.ID], st.Unlocked)
		}
		if st.Unlocked && st.UnlockedAt == nil {
			t.Errorf("%s: expected unlock time", st.ID)
		}
	}
}

func TestServicePersistsAcrossRestart(t *testing.T) {
	svc, path := newTestService(t)
	svc.RecordGameEnd(finished(game.ModeClassic, 150))
	svc.RecordGameEnd(finished(game.ModeClassic, 90))
	if err := svc.Close(); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}

	reopened, err := NewService(context.Background(), openTestRepo(t, path), ServiceOptions{})
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.HighScore(game.ModeClassic) != 150 {
		t.Errorf("Expected best 150, got %d", reopened.HighScore(game.ModeClassic))
	}
	if got := reopened.Stats().TotalGames; got != 2 {
		t.Errorf("Expected 2 games, got %d", got)
	}
	if !reopened.Achievements()[0].Unlocked {
		t.Error("Expected FIRST_FOOD to survive restart")
	}

	games, err := reopened.RecentGames(context.Background(), 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(games) != 2 {
		t.Errorf("Expected 2 games in history, got %d", len(games))
	}
}

func TestServiceExportImport(t *testing.T) {
	src, _ := newTestService(t)
	src.RecordGameEnd(finished(game.ModeClassic, 300))
	src.RecordGameEnd(finished(game.ModeEndless, 700))
	data := src.Export()

	if data.Version != ExportVersion {
		t.Errorf("Expected version %d, got %d", ExportVersion, data.Version)
	}
	if len(data.HighScores) != 2 {
		t.Fatalf("Expected 2 exported scores, got %d", len(data.HighScores))
	}

	dst, _ := newTestService(t)
	dst.RecordGameEnd(finished(game.ModeChallenge, 50))

	if err := dst.Import(context.Background(), data); err != nil {
		t.Fatalf("Unexpected import error: %v", err)
	}
	if dst.HighScore(game.ModeChallenge) != 0 {
		t.Error("Expected import to replace existing high scores")
	}
	if dst.HighScore(game.ModeEndless) != 700 {
		t.Errorf("Expected endless best 700, got %d", dst.HighScore(game.ModeEndless))
	}
	if dst.Stats().TotalGames != 2 {
		t.Errorf("Expected imported 2 games, got %d", dst.Stats().TotalGames)
	}
}

func TestServiceImportRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	svc.RecordGameEnd(finished(game.ModeClassic, 100))

	tests := []struct {
		name string
		data ExportData
	}{
		{"missing version", ExportData{}},
		{"future version", ExportData{Version: ExportVersion + 1}},
		{"negative score", ExportData{Version: 1, HighScores: []HighScoreEntry{{Score: -1}}}},
		{"unknown achievement", ExportData{Version: 1, Achievements: []UnlockedAchievement{{ID: "NOPE"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Import(context.Background(), tt.data)
			if !errors.Is(err, ErrInvalidData) {
				t.Errorf("Expected ErrInvalidData, got %v", err)
			}
		})
	}

	if svc.HighScore(game.ModeClassic) != 100 {
		t.Error("Expected rejected import to leave data untouched")
	}
}

func TestServiceClosed(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Close()

	if err := svc.Flush(context.Background()); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
	svc.RecordGameEnd(finished(game.ModeClassic, 10))
	if svc.WriteStats().Dropped != 1 {
		t.Errorf("Expected 1 dropped write, got %d", svc.WriteStats().Dropped)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}
