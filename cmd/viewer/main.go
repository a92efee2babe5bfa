// =============================================================================
// SNAKE ARENA - TERMINAL VIEWER
// =============================================================================
// Standalone process that plays the game in a terminal:
// - Receives snapshots via IPC from the game server
// - Draws the board with tcell
// - Sends arrow/WASD/p/r/m keys back as intents
//
// USAGE:
//   1. Start the game server first: go run ./cmd/server
//   2. Then start the viewer:       go run ./cmd/viewer
// =============================================================================
package main

import (
	"log"
	"os"
	"time"

	"snake-arena/internal/ipc"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

const redrawInterval = 33 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	socketPath := getEnvWithDefault("IPC_SOCKET", ipc.DefaultSocketPath)

	// The screen owns the terminal, so logs go to a file
	logPath := getEnvWithDefault("VIEWER_LOG", "viewer.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Failed to open viewer log: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to init screen: %v", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	// Connection changes switch between the board and the waiting screen
	connected := make(chan bool, 4)
	sub := ipc.NewSubscriber(socketPath)
	sub.OnConnect(func() { notifyConnected(connected, true) })
	sub.OnDisconnect(func() { notifyConnected(connected, false) })
	sub.Start()
	defer sub.Stop()

	run(screen, sub, connected)
	log.Println("👋 Viewer closed")
}

// run draws snapshots and forwards keys until the user quits
func run(screen tcell.Screen, sub *ipc.Subscriber, connected <-chan bool) {
	term := newTerminal(screen)
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)
	defer close(quit)

	var lastSeq uint64
	online := false
	term.draw(nil)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				intent, mode, done := keyIntent(ev)
				if done {
					return
				}
				if intent == "" {
					continue
				}
				if err := sub.SendIntent(intent, mode); err != nil {
					log.Printf("⚠️ Intent %s not sent: %v", intent, err)
				}
			case *tcell.EventResize:
				screen.Sync()
				lastSeq = 0
			}

		case up := <-connected:
			online = up
			lastSeq = 0
			if !up {
				term.draw(nil)
			}

		case <-ticker.C:
			if !online {
				continue
			}
			snap := sub.GetLatestSnapshot()
			if snap != nil && snap.Sequence == lastSeq {
				continue
			}
			if snap != nil {
				lastSeq = snap.Sequence
			}
			term.draw(snap)
		}
	}
}

func notifyConnected(ch chan<- bool, up bool) {
	select {
	case ch <- up:
	default:
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
