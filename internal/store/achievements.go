package store

import (
	"time"

	"snake-arena/internal/game"
)

// AchievementID names an achievement
type AchievementID string

const (
	AchievementFirstFood   AchievementID = "FIRST_FOOD"
	AchievementSpeedDemon  AchievementID = "SPEED_DEMON"
	AchievementSurvivor    AchievementID = "SURVIVOR"
	AchievementScoreMaster AchievementID = "SCORE_MASTER"
	AchievementComboKing   AchievementID = "COMBO_KING"
	AchievementLevelUp     AchievementID = "LEVEL_UP"
)

// Achievement is a one-time goal evaluated against a finished game
type Achievement struct {
	ID          AchievementID             `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Reward      int                       `json:"reward"` // Display only
	Condition   func(game.GameStats) bool `json:"-"`
}

// Achievements lists every achievement in display order
var Achievements = []Achievement{
	{
		ID:          AchievementFirstFood,
		Name:        "First Bite",
		Description: "Eat your first food",
		Reward:      50,
		Condition:   func(s game.GameStats) bool { return s.FoodEaten >= 1 },
	},
	{
		ID:          AchievementSpeedDemon,
		Name:        "Speed Demon",
		Description: "Eat 10 foods within 30 seconds",
		Reward:      200,
		Condition: func(s game.GameStats) bool {
			return s.FoodEaten >= 10 && s.GameTime <= 30*time.Second
		},
	},
	{
		ID:          AchievementSurvivor,
		Name:        "Survivor",
		Description: "Play for more than 5 minutes",
		Reward:      300,
		Condition:   func(s game.GameStats) bool { return s.GameTime >= 5*time.Minute },
	},
	{
		ID:          AchievementScoreMaster,
		Name:        "Score Master",
		Description: "Score 1000 points in one game",
		Reward:      500,
		Condition:   func(s game.GameStats) bool { return s.Score >= 1000 },
	},
	{
		ID:          AchievementComboKing,
		Name:        "Combo King",
		Description: "Chain 20 foods in one combo",
		Reward:      400,
		Condition:   func(s game.GameStats) bool { return s.MaxCombo >= 20 },
	},
	{
		ID:          AchievementLevelUp,
		Name:        "Level Expert",
		Description: "Reach level 10",
		Reward:      1000,
		Condition:   func(s game.GameStats) bool { return s.Level >= 10 },
	},
}

// LookupAchievement returns the definition for id
func LookupAchievement(id AchievementID) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// EvaluateAchievements returns the achievements stats earns that are not in unlocked
func EvaluateAchievements(stats game.GameStats, unlocked map[AchievementID]bool) []AchievementID {
	var earned []AchievementID
	for _, a := range Achievements {
		if unlocked[a.ID] {
			continue
		}
		if a.Condition(stats) {
			earned = append(earned, a.ID)
		}
	}
	return earned
}
