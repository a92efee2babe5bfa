package game

import (
	"log"
	"time"
)

// GameStats is the final record of a finished session.
type GameStats struct {
	Mode       Mode          `json:"mode"`
	Difficulty string        `json:"difficulty"`
	PlayerName string        `json:"playerName"`
	Score      int           `json:"score"`
	Level      int           `json:"level"`
	FoodEaten  int           `json:"foodEaten"`
	MaxCombo   int           `json:"maxCombo"`
	GameTime   time.Duration `json:"gameTimeNs"`
	Outcome    Outcome       `json:"outcome"`
	EndedAt    time.Time     `json:"endedAt"`
}

// Recorder persists finished games and answers high-score queries.
// Implementations must return quickly; durable writes belong on their own goroutine.
type Recorder interface {
	RecordGameEnd(stats GameStats)
	IsNewHighScore(score int, mode Mode) bool
	HighScore(mode Mode) int
}

// nopRecorder is used when no persistence is wired.
type nopRecorder struct{}

func (nopRecorder) RecordGameEnd(GameStats)       {}
func (nopRecorder) IsNewHighScore(int, Mode) bool { return false }
func (nopRecorder) HighScore(Mode) int            { return 0 }

// The helpers below isolate the session from collaborator panics.

func safeRecord(r Recorder, stats GameStats) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️ Recorder panicked on RecordGameEnd: %v", rec)
		}
	}()
	r.RecordGameEnd(stats)
}

func safeIsNewHighScore(r Recorder, score int, mode Mode) (isNew bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️ Recorder panicked on IsNewHighScore: %v", rec)
			isNew = false
		}
	}()
	return r.IsNewHighScore(score, mode)
}

func safeHighScore(r Recorder, mode Mode) (score int) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️ Recorder panicked on HighScore: %v", rec)
			score = 0
		}
	}()
	return r.HighScore(mode)
}

func safeNotify(n Notifier, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️ Notifier panicked on %s: %v", e.Topic, rec)
		}
	}()
	n.Notify(e)
}
