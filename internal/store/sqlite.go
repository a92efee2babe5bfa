package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"snake-arena/internal/game"
)

// Repository is the durable side of the store
type Repository interface {
	SaveGame(ctx context.Context, rec GameRecord) error
	RecentGames(ctx context.Context, limit int) ([]GameRecord, error)
	ReplaceHighScores(ctx context.Context, mode game.Mode, entries []HighScoreEntry) error
	LoadHighScores(ctx context.Context) ([]HighScoreEntry, error)
	SaveStats(ctx context.Context, s Stats) error
	LoadStats(ctx context.Context) (Stats, error)
	SaveAchievement(ctx context.Context, a UnlockedAchievement) error
	LoadAchievements(ctx context.Context) ([]UnlockedAchievement, error)
	ReplaceAll(ctx context.Context, data ExportData) error
	Close() error
}

// SQLiteRepository persists games, high scores, stats and achievements in SQLite
type SQLiteRepository struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		player_name TEXT,
		mode TEXT NOT NULL,
		difficulty TEXT,
		score INTEGER NOT NULL,
		level INTEGER NOT NULL,
		food_eaten INTEGER NOT NULL,
		max_combo INTEGER NOT NULL,
		game_time_ns INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		ended_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at)`,
	`CREATE TABLE IF NOT EXISTS high_scores (
		id TEXT PRIMARY KEY,
		name TEXT,
		score INTEGER NOT NULL,
		mode TEXT NOT NULL,
		difficulty TEXT,
		level INTEGER NOT NULL,
		date INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_high_scores_mode ON high_scores(mode, score DESC)`,
	`CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_games INTEGER NOT NULL,
		total_score INTEGER NOT NULL,
		total_time_ns INTEGER NOT NULL,
		total_food_eaten INTEGER NOT NULL,
		high_score INTEGER NOT NULL,
		max_level INTEGER NOT NULL,
		max_combo INTEGER NOT NULL,
		games_won INTEGER NOT NULL,
		games_lost INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		unlocked_at INTEGER NOT NULL
	)`,
}

// OpenSQLite opens (and creates if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; the write-behind worker serializes anyway
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	for _, query := range schema {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// =============================================================================
// GAMES
// =============================================================================

// SaveGame appends a finished game
func (r *SQLiteRepository) SaveGame(ctx context.Context, rec GameRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (id, player_name, mode, difficulty, score, level, food_eaten, max_combo, game_time_ns, outcome, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PlayerName, rec.Mode.String(), rec.Difficulty, rec.Score, rec.Level,
		rec.FoodEaten, rec.MaxCombo, int64(rec.GameTime), rec.Outcome.String(), rec.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save game %s: %w", rec.ID, err)
	}
	return nil
}

// RecentGames returns up to limit games, newest first
func (r *SQLiteRepository) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_name, mode, difficulty, score, level, food_eaten, max_combo, game_time_ns, outcome, ended_at
		 FROM games ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var (
			rec             GameRecord
			mode, outcome   string
			gameTime, ended int64
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerName, &mode, &rec.Difficulty, &rec.Score, &rec.Level,
			&rec.FoodEaten, &rec.MaxCombo, &gameTime, &outcome, &ended); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		rec.Mode, _ = game.ParseMode(mode)
		rec.Outcome.UnmarshalText([]byte(outcome))
		rec.GameTime = time.Duration(gameTime)
		rec.EndedAt = time.UnixMilli(ended).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// HIGH SCORES
// =============================================================================

// ReplaceHighScores overwrites the table of one mode
func (r *SQLiteRepository) ReplaceHighScores(ctx context.Context, mode game.Mode, entries []HighScoreEntry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM high_scores WHERE mode = ?`, mode.String()); err != nil {
			return fmt.Errorf("clear high scores: %w", err)
		}
		return insertHighScores(ctx, tx, entries)
	})
}

func insertHighScores(ctx context.Context, tx *sql.Tx, entries []HighScoreEntry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO high_scores (id, name, score, mode, difficulty, level, date) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare high score insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.Score, e.Mode.String(), e.Difficulty, e.Level, e.Date.UnixMilli()); err != nil {
			return fmt.Errorf("insert high score %s: %w", e.ID, err)
		}
	}
	return nil
}

// LoadHighScores returns every stored high score
func (r *SQLiteRepository) LoadHighScores(ctx context.Context) ([]HighScoreEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, score, mode, difficulty, level, date FROM high_scores ORDER BY mode, score DESC`)
	if err != nil {
		return nil, fmt.Errorf("query high scores: %w", err)
	}
	defer rows.Close()

	var out []HighScoreEntry
	for rows.Next() {
		var (
			e    HighScoreEntry
			mode string
			date int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Score, &mode, &e.Difficulty, &e.Level, &date); err != nil {
			return nil, fmt.Errorf("scan high score: %w", err)
		}
		if e.Mode, err = game.ParseMode(mode); err != nil {
			continue
		}
		e.Date = time.UnixMilli(date).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// STATS
// =============================================================================

// SaveStats overwrites the lifetime totals
func (r *SQLiteRepository) SaveStats(ctx context.Context, s Stats) error {
	return saveStats(ctx, r.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveStats(ctx context.Context, db execer, s Stats) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO stats (id, total_games, total_score, total_time_ns, total_food_eaten, high_score, max_level, max_combo, games_won, games_lost)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TotalGames, s.TotalScore, int64(s.TotalTime), s.TotalFoodEaten, s.HighScore,
		s.MaxLevel, s.MaxCombo, s.GamesWon, s.GamesLost)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// LoadStats returns the lifetime totals, zero if none were saved
func (r *SQLiteRepository) LoadStats(ctx context.Context) (Stats, error) {
	var (
		s         Stats
		totalTime int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT total_games, total_score, total_time_ns, total_food_eaten, high_score, max_level, max_combo, games_won, games_lost
		 FROM stats WHERE id = 1`).Scan(
		&s.TotalGames, &s.TotalScore, &totalTime, &s.TotalFoodEaten, &s.HighScore,
		&s.MaxLevel, &s.MaxCombo, &s.GamesWon, &s.GamesLost)
	if err == sql.ErrNoRows {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("load stats: %w", err)
	}
	s.TotalTime = time.Duration(totalTime)
	s.recomputeAverages()
	return s, nil
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// SaveAchievement marks an achievement unlocked; repeats keep the first time
func (r *SQLiteRepository) SaveAchievement(ctx context.Context, a UnlockedAchievement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievements (id, unlocked_at) VALUES (?, ?)`,
		string(a.ID), a.UnlockedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save achievement %s: %w", a.ID, err)
	}
	return nil
}

// LoadAchievements returns every unlocked achievement
func (r *SQLiteRepository) LoadAchievements(ctx context.Context) ([]UnlockedAchievement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, unlocked_at FROM achievements ORDER BY unlocked_at`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []UnlockedAchievement
	for rows.Next() {
		var (
			a  UnlockedAchievement
			id string
			at int64
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.ID = AchievementID(id)
		a.UnlockedAt = time.UnixMilli(at).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// IMPORT
// =============================================================================

// ReplaceAll swaps high scores, stats and achievements for data in one transaction.
// Game history is kept.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, data ExportData) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{`DELETE FROM high_scores`, `DELETE FROM achievements`, `DELETE FROM stats`} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("clear for import: %w", err)
			}
		}
		if err := insertHighScores(ctx, tx, data.HighScores); err != nil {
			return err
		}
		if err := saveStats(ctx, tx, data.Stats); err != nil {
			return err
		}
		for _, a := range data.Achievements {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO achievements (id, unlocked_at) VALUES (?, ?)`,
				string(a.ID), a.UnlockedAt.UnixMilli()); err != nil {
				return fmt.Errorf("import achievement %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
