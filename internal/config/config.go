// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for board, difficulty, level and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Validate when a setting breaks a game invariant.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// BOARD CONFIGURATION
// =============================================================================

// Boundary modes
const (
	BoundaryWall = "wall" // Leaving the board ends the game
	BoundaryWrap = "wrap" // Head re-enters from the opposite edge
)

// BoardConfig describes the playfield in pixels.
// Width and Height must be multiples of GridSize.
type BoardConfig struct {
	Width    int
	Height   int
	GridSize int
	Boundary string
}

// DefaultBoard returns the default 600x600 board with 20px cells.
func DefaultBoard() BoardConfig {
	return BoardConfig{
		Width:    600,
		Height:   600,
		GridSize: 20,
		Boundary: BoundaryWall,
	}
}

// Columns returns the number of grid cells per row.
func (b BoardConfig) Columns() int {
	if b.GridSize <= 0 {
		return 0
	}
	return b.Width / b.GridSize
}

// Rows returns the number of grid cells per column.
func (b BoardConfig) Rows() int {
	if b.GridSize <= 0 {
		return 0
	}
	return b.Height / b.GridSize
}

// =============================================================================
// DIFFICULTY CONFIGURATION
// =============================================================================

// DifficultyConfig holds the per-difficulty tuning.
type DifficultyConfig struct {
	Name            string
	Speed           time.Duration // Base move interval at level 1
	ScoreMultiplier float64
	ObstacleCount   int
}

// Difficulties returns the difficulty table keyed by lowercase name.
func Difficulties() map[string]DifficultyConfig {
	return map[string]DifficultyConfig{
		"easy":   {Name: "easy", Speed: 200 * time.Millisecond, ScoreMultiplier: 0.8, ObstacleCount: 0},
		"normal": {Name: "normal", Speed: 150 * time.Millisecond, ScoreMultiplier: 1.0, ObstacleCount: 3},
		"hard":   {Name: "hard", Speed: 100 * time.Millisecond, ScoreMultiplier: 1.2, ObstacleCount: 6},
		"expert": {Name: "expert", Speed: 80 * time.Millisecond, ScoreMultiplier: 1.5, ObstacleCount: 10},
	}
}

// LookupDifficulty resolves a difficulty name (case-insensitive).
func LookupDifficulty(name string) (DifficultyConfig, error) {
	d, ok := Difficulties()[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return DifficultyConfig{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfig, name)
	}
	return d, nil
}

// =============================================================================
// LEVEL CONFIGURATION
// =============================================================================

// LevelConfig controls level progression and the resulting speed curve.
type LevelConfig struct {
	ScorePerLevel int
	MaxLevel      int
	SpeedIncrease time.Duration // Interval reduction per level
	MinSpeed      time.Duration // Interval floor
}

// DefaultLevel returns the default level curve.
func DefaultLevel() LevelConfig {
	return LevelConfig{
		ScorePerLevel: 200,
		MaxLevel:      20,
		SpeedIncrease: 10 * time.Millisecond,
		MinSpeed:      50 * time.Millisecond,
	}
}

// =============================================================================
// FOOD CONFIGURATION
// =============================================================================

// FoodWeights are the spawn probabilities per food kind.
// Residual mass (1 - sum) goes to normal food.
type FoodWeights struct {
	Normal      float64
	Bonus       float64
	SpeedUp     float64
	SlowDown    float64
	DoubleScore float64
}

// DefaultFoodWeights returns the standard distribution.
func DefaultFoodWeights() FoodWeights {
	return FoodWeights{
		Normal:      0.70,
		Bonus:       0.20,
		SpeedUp:     0.05,
		SlowDown:    0.03,
		DoubleScore: 0.02,
	}
}

// Sum returns the total configured probability mass.
func (w FoodWeights) Sum() float64 {
	return w.Normal + w.Bonus + w.SpeedUp + w.SlowDown + w.DoubleScore
}

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig is everything a session reads at start. Sessions copy it and never mutate it.
type GameConfig struct {
	Board       BoardConfig
	Difficulty  DifficultyConfig
	Level       LevelConfig
	FoodWeights FoodWeights
	ComboWindow time.Duration
	Mode        string // Default mode for Start without an explicit mode
	PlayerName  string // Name written next to high scores
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	d, _ := LookupDifficulty("normal")
	return GameConfig{
		Board:       DefaultBoard(),
		Difficulty:  d,
		Level:       DefaultLevel(),
		FoodWeights: DefaultFoodWeights(),
		ComboWindow: 3 * time.Second,
		Mode:        "CLASSIC",
		PlayerName:  "Player",
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
// Unknown difficulty names are reported by Validate rather than silently ignored.
func GameFromEnv() (GameConfig, error) {
	cfg := DefaultGame()

	if g := getEnvInt("GRID_SIZE", 0); g > 0 {
		cfg.Board.GridSize = g
	}
	if w := getEnvInt("BOARD_WIDTH", 0); w > 0 {
		cfg.Board.Width = w
	}
	if h := getEnvInt("BOARD_HEIGHT", 0); h > 0 {
		cfg.Board.Height = h
	}
	if b := os.Getenv("BOUNDARY_MODE"); b != "" {
		cfg.Board.Boundary = strings.ToLower(b)
	}
	if name := os.Getenv("DIFFICULTY"); name != "" {
		d, err := LookupDifficulty(name)
		if err != nil {
			return cfg, err
		}
		cfg.Difficulty = d
	}
	if m := os.Getenv("GAME_MODE"); m != "" {
		cfg.Mode = strings.ToUpper(m)
	}
	if ms := getEnvInt("COMBO_WINDOW_MS", 0); ms > 0 {
		cfg.ComboWindow = time.Duration(ms) * time.Millisecond
	}
	if n := os.Getenv("PLAYER_NAME"); n != "" {
		cfg.PlayerName = n
	}

	cfg.FoodWeights.Normal = getEnvFloat("FOOD_WEIGHT_NORMAL", cfg.FoodWeights.Normal)
	cfg.FoodWeights.Bonus = getEnvFloat("FOOD_WEIGHT_BONUS", cfg.FoodWeights.Bonus)
	cfg.FoodWeights.SpeedUp = getEnvFloat("FOOD_WEIGHT_SPEED_UP", cfg.FoodWeights.SpeedUp)
	cfg.FoodWeights.SlowDown = getEnvFloat("FOOD_WEIGHT_SLOW_DOWN", cfg.FoodWeights.SlowDown)
	cfg.FoodWeights.DoubleScore = getEnvFloat("FOOD_WEIGHT_DOUBLE_SCORE", cfg.FoodWeights.DoubleScore)

	return cfg, cfg.Validate()
}

// Validate checks the invariants the simulation relies on.
func (c GameConfig) Validate() error {
	b := c.Board
	if b.GridSize <= 0 || b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: board dimensions must be positive (%dx%d, grid %d)",
			ErrInvalidConfig, b.Width, b.Height, b.GridSize)
	}
	if b.Width%b.GridSize != 0 || b.Height%b.GridSize != 0 {
		return fmt.Errorf("%w: board %dx%d is not a multiple of grid size %d",
			ErrInvalidConfig, b.Width, b.Height, b.GridSize)
	}
	if b.Boundary != BoundaryWall && b.Boundary != BoundaryWrap {
		return fmt.Errorf("%w: unknown boundary mode %q", ErrInvalidConfig, b.Boundary)
	}
	if c.Difficulty.Speed <= 0 || c.Difficulty.ScoreMultiplier < 0 || c.Difficulty.ObstacleCount < 0 {
		return fmt.Errorf("%w: bad difficulty %+v", ErrInvalidConfig, c.Difficulty)
	}
	if c.Level.ScorePerLevel <= 0 || c.Level.MaxLevel < 1 || c.Level.SpeedIncrease < 0 || c.Level.MinSpeed <= 0 {
		return fmt.Errorf("%w: bad level curve %+v", ErrInvalidConfig, c.Level)
	}
	w := c.FoodWeights
	if w.Normal < 0 || w.Bonus < 0 || w.SpeedUp < 0 || w.SlowDown < 0 || w.DoubleScore < 0 {
		return fmt.Errorf("%w: food weights must be non-negative", ErrInvalidConfig)
	}
	if w.Sum() > 1.0+1e-9 {
		return fmt.Errorf("%w: food weights sum to %.4f (> 1)", ErrInvalidConfig, w.Sum())
	}
	if c.ComboWindow <= 0 {
		return fmt.Errorf("%w: combo window must be positive", ErrInvalidConfig)
	}
	return nil
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds process-level settings.
type ServerConfig struct {
	Port         int
	TickRate     int    // Engine ticks per second
	DBPath       string // SQLite file for scores and stats
	EventLogPath string // JSONL event log, empty disables it
	IPCSocket    string // Unix socket for the terminal viewer
	FontPath     string // Optional TTF/OTF for rendered frames
	AdminToken   string // Required for data import when set
	Seed         int64  // RNG seed, 0 means time-based
	CORSOrigins  []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		TickRate:     60, // Matches a typical display refresh rate
		DBPath:       "data/snake.db",
		EventLogPath: "events.jsonl",
		IPCSocket:    "/tmp/snake-arena.sock",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = v
	}
	if v := os.Getenv("IPC_SOCKET"); v != "" {
		cfg.IPCSocket = v
	}
	if v := os.Getenv("FONT_PATH"); v != "" {
		cfg.FontPath = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("SEED"); v != "" {
		if s, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = s
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps queue and connection sizes.
type ResourceLimits struct {
	IntentQueueSize int // Buffered input intents between ticks
	EventBufferSize int // Buffered notifier events
	MaxWSClients    int
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		IntentQueueSize: 64,
		EventBufferSize: 256,
		MaxWSClients:    500,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game   GameConfig
	Server ServerConfig
	Limits ResourceLimits
}

// Load returns the complete configuration with environment overrides.
func Load() (AppConfig, error) {
	game, err := GameFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Game:   game,
		Server: ServerFromEnv(),
		Limits: DefaultLimits(),
	}, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
