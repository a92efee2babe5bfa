package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"snake-arena/internal/api"
	"snake-arena/internal/config"
	"snake-arena/internal/game"
	"snake-arena/internal/input"
	"snake-arena/internal/ipc"
	"snake-arena/internal/render"
	"snake-arena/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🐍 ================================")
	log.Println("🐍  SNAKE ARENA - GO ENGINE")
	log.Println("🐍 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	gameCfg := appConfig.Game
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %dx%d board, %dpx grid, %s boundary, %s difficulty, %d TPS",
		gameCfg.Board.Width, gameCfg.Board.Height, gameCfg.Board.GridSize,
		gameCfg.Board.Boundary, gameCfg.Difficulty.Name, serverCfg.TickRate)

	// Persistence: scores, stats and achievements
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, serverCfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}

	// Assigned before the engine starts; achievements are pushed to browsers
	var hub *api.WebSocketHub
	scores, err := store.NewService(ctx, repo, store.ServiceOptions{
		OnAchievement: func(a store.Achievement) {
			if hub != nil {
				hub.Broadcast("game:achievement", a)
			}
		},
	})
	if err != nil {
		repo.Close()
		log.Fatalf("❌ Failed to load scores: %v", err)
	}

	engine, err := game.NewEngine(game.EngineConfig{
		TickRate: serverCfg.TickRate,
		Game:     gameCfg,
		Limits:   appConfig.Limits,
		Seed:     serverCfg.Seed,
		Recorder: scores,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create engine: %v", err)
	}

	// Every transport submits through one handler so limits are shared
	intents := input.NewHandler(engine.Queue(), input.NewRateLimiter(input.DefaultRateLimitConfig))

	renderer := render.NewFrameRenderer(render.DefaultTheme())
	if serverCfg.FontPath != "" {
		if err := renderer.LoadFont(serverCfg.FontPath); err != nil {
			log.Printf("⚠️ Using built-in font: %v", err)
		}
	}

	api.SetAllowedOrigins(serverCfg.CORSOrigins)
	server := api.NewServer(api.ServerConfig{
		Engine:      engine,
		Input:       intents,
		Store:       scores,
		Renderer:    renderer,
		CORSOrigins: serverCfg.CORSOrigins,
		MaxClients:  appConfig.Limits.MaxWSClients,
		AdminToken:  serverCfg.AdminToken,
	})
	hub = server.Hub()

	engine.Subscribe(hub.BroadcastEvent)
	engine.Subscribe(api.ObserveEvent)
	engine.SetTickHook(api.RecordTick)

	// Start event log
	if serverCfg.EventLogPath != "" {
		if err := engine.StartEventLog(serverCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
		}
	}

	// Terminal viewers
	publisher := ipc.NewPublisher(serverCfg.IPCSocket, intents)
	publisher.SetConfig(ipc.ConfigFromGame(gameCfg, serverCfg.TickRate))
	if err := publisher.Start(); err != nil {
		log.Printf("⚠️ IPC disabled: %v", err)
	} else {
		publisher.StartFeed(engine, time.Second/time.Duration(serverCfg.TickRate))
	}

	// Start debug server
	if err := api.StartDebugServer(api.ObservabilityConfigFromEnv()); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	stopMetrics := make(chan struct{})
	go exportEngineMetrics(engine, stopMetrics)

	engine.Start()

	port := strconv.Itoa(serverCfg.Port)
	go func() {
		if err := server.Start(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Println("")
	log.Println("📋 How to play:")
	log.Printf("   - Browser:  ws://localhost:%s/ws, frames at /api/frame.png", port)
	log.Println("   - Terminal: go run ./cmd/viewer")
	log.Printf("   - HTTP:     curl -X POST localhost:%s/api/input -d '{\"intent\":\"start\"}' -H 'Content-Type: application/json'", port)
	log.Println("")

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	publisher.Stop()
	engine.Stop()
	engine.StopEventLog()
	close(stopMetrics)
	intents.Stop()

	if err := scores.Flush(shutdownCtx); err != nil {
		log.Printf("⚠️ Pending score writes lost: %v", err)
	}
	if err := scores.Close(); err != nil {
		log.Printf("⚠️ Database close: %v", err)
	}
	log.Println("👋 Goodbye!")
}

// exportEngineMetrics copies event log counters into Prometheus.
// Runs off the tick goroutine because Engine.Stats takes the engine lock.
func exportEngineMetrics(engine *game.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var m api.EventLogMetrics
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := engine.Stats().EventLog
			m.Update(s.Total, s.Dropped)
		}
	}
}
