package ipc

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotConnected is returned by SendIntent while no connection is up
var ErrNotConnected = errors.New("ipc: not connected")

// Subscriber receives game snapshots from the server and sends intents back
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex
	writeMu    sync.Mutex

	// Latest snapshot (lock-free access)
	latestSnapshot atomic.Pointer[SnapshotMessage]

	// Config received from server
	configCh chan ConfigMessage

	// Stats
	snapshotsReceived atomic.Int64
	reconnects        atomic.Int64
	errors            atomic.Int64

	// Control
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks
	onSnapshot   func(*SnapshotMessage)
	onConnect    func()
	onDisconnect func()
}

// SubscriberStats is a point-in-time view of the subscriber counters
type SubscriberStats struct {
	Received   int64
	Reconnects int64
	Errors     int64
}

// NewSubscriber creates a new IPC subscriber
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		configCh:   make(chan ConfigMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnSnapshot sets a callback for when a snapshot is received
func (s *Subscriber) OnSnapshot(fn func(*SnapshotMessage)) {
	s.onSnapshot = fn
}

// OnConnect sets a callback for when connection is established
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when connection is lost
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start starts the subscriber, connecting to the server
func (s *Subscriber) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("📡 IPC Subscriber started, connecting to %s", GetPlatformAddress(s.socketPath))
	return nil
}

// Stop stops the subscriber
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return // Not running
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("📡 IPC Subscriber stopped")
}

// SendIntent sends a player action to the server
func (s *Subscriber) SendIntent(intent, mode string) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return WriteMessage(conn, MsgTypeIntent, IntentMessage{Intent: intent, Mode: mode})
}

// GetLatestSnapshot returns the most recent snapshot (lock-free)
func (s *Subscriber) GetLatestSnapshot() *SnapshotMessage {
	return s.latestSnapshot.Load()
}

// WaitForConfig blocks until config is received or timeout
func (s *Subscriber) WaitForConfig(timeout time.Duration) *ConfigMessage {
	select {
	case cfg := <-s.configCh:
		return &cfg
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

// Stats returns subscriber statistics
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received:   s.snapshotsReceived.Load(),
		Reconnects: s.reconnects.Load(),
		Errors:     s.errors.Load(),
	}
}

// IsConnected returns whether the subscriber is connected
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// connectionLoop maintains the connection to the server
func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}
		log.Printf("✅ Connected to server at %s", GetPlatformAddress(s.socketPath))

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()

		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		// Connection lost
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}

		s.reconnects.Add(1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

// readLoop reads messages from the connection
func (s *Subscriber) readLoop(conn net.Conn) {
	for s.running.Load() {
		// Blocks until a frame arrives; Stop unblocks it by closing conn
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Println("🔌 Server closed connection")
				return
			}
			if s.running.Load() {
				log.Printf("⚠️ IPC read error: %v", err)
				s.errors.Add(1)
			}
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)

		case MsgTypeConfig:
			s.handleConfig(data)

		case MsgTypePing:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
			s.writeMu.Unlock()
		}
	}
}

// handleSnapshot processes a received snapshot
func (s *Subscriber) handleSnapshot(data []byte) {
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode snapshot: %v", err)
		s.errors.Add(1)
		return
	}

	s.latestSnapshot.Store(snapshot)
	s.snapshotsReceived.Add(1)

	if s.onSnapshot != nil {
		s.onSnapshot(snapshot)
	}
}

// handleConfig processes a received config
func (s *Subscriber) handleConfig(data []byte) {
	config, err := DecodeConfig(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode config: %v", err)
		s.errors.Add(1)
		return
	}

	log.Printf("📺 Received game config: %dx%d grid %d @ %d TPS (%s, %s)",
		config.Width, config.Height, config.GridSize, config.TickRate, config.Mode, config.Difficulty)

	// Non-blocking send to config channel
	select {
	case s.configCh <- *config:
	default:
	}
}
