package store

import (
	"errors"
	"time"

	"snake-arena/internal/game"
)

// MaxHighScores is the number of entries kept per mode
const MaxHighScores = 10

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidData   = errors.New("invalid import data")
	ErrServiceClosed = errors.New("store service closed")
)

// HighScoreEntry is one row of a per-mode high score table
type HighScoreEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Mode       game.Mode `json:"mode"`
	Difficulty string    `json:"difficulty"`
	Level      int       `json:"level"`
	Date       time.Time `json:"date"`
}

// GameRecord is the durable form of a finished game
type GameRecord struct {
	ID       string `json:"id"`
	game.GameStats
}

// Stats are lifetime totals across every finished game
type Stats struct {
	TotalGames     int           `json:"totalGames"`
	TotalScore     int           `json:"totalScore"`
	TotalTime      time.Duration `json:"totalTimeNs"`
	TotalFoodEaten int           `json:"totalFoodEaten"`
	HighScore      int           `json:"highScore"`
	MaxLevel       int           `json:"maxLevel"`
	MaxCombo       int           `json:"maxCombo"`
	GamesWon       int           `json:"gamesWon"`
	GamesLost      int           `json:"gamesLost"`
	AverageScore   float64       `json:"averageScore"`
	AverageTime    time.Duration `json:"averageTimeNs"`
}

// Apply folds one finished game into the totals
func (s *Stats) Apply(g game.GameStats) {
	s.TotalGames++
	s.TotalScore += g.Score
	s.TotalTime += g.GameTime
	s.TotalFoodEaten += g.FoodEaten
	s.HighScore = max(s.HighScore, g.Score)
	s.MaxLevel = max(s.MaxLevel, g.Level)
	s.MaxCombo = max(s.MaxCombo, g.MaxCombo)

	switch g.Outcome {
	case game.OutcomeWon:
		s.GamesWon++
	default:
		s.GamesLost++
	}

	s.recomputeAverages()
}

func (s *Stats) recomputeAverages() {
	if s.TotalGames == 0 {
		s.AverageScore = 0
		s.AverageTime = 0
		return
	}
	s.AverageScore = float64(s.TotalScore) / float64(s.TotalGames)
	s.AverageTime = s.TotalTime / time.Duration(s.TotalGames)
}

// UnlockedAchievement records when an achievement was earned
type UnlockedAchievement struct {
	ID         AchievementID `json:"id"`
	UnlockedAt time.Time     `json:"unlockedAt"`
}

// ExportData is the portable snapshot of all persisted data
type ExportData struct {
	Version      int                   `json:"version"`
	ExportedAt   time.Time             `json:"exportedAt"`
	HighScores   []HighScoreEntry      `json:"highScores"`
	Stats        Stats                 `json:"stats"`
	Achievements []UnlockedAchievement `json:"achievements"`
}

// ExportVersion is bumped when ExportData changes shape
const ExportVersion = 1
