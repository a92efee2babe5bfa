package ipc

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/input"
)

// SnapshotSource is polled by the publisher feed
type SnapshotSource interface {
	Snapshot() game.Snapshot
}

// IntentSubmitter accepts intents read from viewers
type IntentSubmitter interface {
	Submit(source, name, mode string) (input.Intent, error)
}

// viewer is one connected client; writes are serialized per connection
type viewer struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (v *viewer) write(msgType uint8, payload interface{}) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	v.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return WriteMessage(v.conn, msgType, payload)
}

// Publisher streams game snapshots to connected viewers via Unix socket and
// forwards their intents to the input handler
type Publisher struct {
	socketPath string
	listener   net.Listener
	input      IntentSubmitter

	// Connected clients
	clients   map[net.Conn]*viewer
	clientsMu sync.RWMutex

	// Snapshot channel (ring buffer behavior - drop old if full)
	snapshotCh chan *SnapshotMessage

	// Config to send to new clients
	config   ConfigMessage
	configMu sync.RWMutex

	// Stats
	clientCount     atomic.Int32
	snapshotsSent   atomic.Int64
	droppedFrames   atomic.Int64
	intentsReceived atomic.Int64

	// Control
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// PublisherStats is a point-in-time view of the publisher counters
type PublisherStats struct {
	Clients         int   `json:"clients"`
	SnapshotsSent   int64 `json:"snapshotsSent"`
	DroppedFrames   int64 `json:"droppedFrames"`
	IntentsReceived int64 `json:"intentsReceived"`
}

// NewPublisher creates a new IPC publisher. in may be nil for a read-only feed.
func NewPublisher(socketPath string, in IntentSubmitter) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		input:      in,
		clients:    make(map[net.Conn]*viewer),
		snapshotCh: make(chan *SnapshotMessage, 8), // Buffer 8 frames
		stopCh:     make(chan struct{}),
	}
}

// SetConfig sets the configuration sent to new clients
func (p *Publisher) SetConfig(cfg ConfigMessage) {
	p.configMu.Lock()
	p.config = cfg
	p.configMu.Unlock()
}

// Start listens on the socket and starts the accept and broadcast loops
func (p *Publisher) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	listener, err := CreateListener(p.socketPath)
	if err != nil {
		p.running.Store(false)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Printf("📡 IPC Publisher started on %s", GetPlatformAddress(p.socketPath))
	return nil
}

// StartFeed polls source and publishes every new snapshot until Stop
func (p *Publisher) StartFeed(source SnapshotSource, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
			}

			if p.clientCount.Load() == 0 {
				continue
			}
			snap := source.Snapshot()
			if snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			p.PublishSnapshot(snap)
		}
	}()
}

// Stop stops the publisher
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return // Not running
	}

	close(p.stopCh)

	if p.listener != nil {
		p.listener.Close()
	}

	// Close all clients
	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clientsMu.Unlock()

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("📡 IPC Publisher stopped")
}

// PublishSnapshot queues a snapshot for broadcast.
// Non-blocking: drops the oldest queued snapshot if the buffer is full.
func (p *Publisher) PublishSnapshot(snapshot game.Snapshot) {
	if !p.running.Load() {
		return
	}

	msg := FromSnapshot(snapshot)
	select {
	case p.snapshotCh <- msg:
	default:
		select {
		case <-p.snapshotCh:
			p.droppedFrames.Add(1)
		default:
		}
		select {
		case p.snapshotCh <- msg:
		default:
		}
	}
}

// Stats returns publisher statistics
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Clients:         int(p.clientCount.Load()),
		SnapshotsSent:   p.snapshotsSent.Load(),
		DroppedFrames:   p.droppedFrames.Load(),
		IntentsReceived: p.intentsReceived.Load(),
	}
}

// acceptLoop accepts new client connections
func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for p.running.Load() {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return // Expected during shutdown
			}
			log.Printf("⚠️ IPC accept error: %v", err)
			continue
		}

		p.addClient(conn)
	}
}

// addClient registers conn, sends it the config and starts its reader
func (p *Publisher) addClient(conn net.Conn) {
	v := &viewer{conn: conn}

	p.clientsMu.Lock()
	p.clients[conn] = v
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	log.Printf("✅ Viewer connected (total: %d)", count)

	p.configMu.RLock()
	cfg := p.config
	p.configMu.RUnlock()

	if err := v.write(MsgTypeConfig, cfg); err != nil {
		log.Printf("⚠️ Failed to send config to viewer: %v", err)
	}

	p.wg.Add(1)
	go p.readLoop(v)
}

// removeClient removes a client connection
func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := p.clientCount.Add(-1)
		log.Printf("🔌 Viewer disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

// readLoop handles intents and pings from one viewer until it disconnects
func (p *Publisher) readLoop(v *viewer) {
	defer p.wg.Done()
	defer p.removeClient(v.conn)

	for {
		msgType, data, err := ReadMessage(v.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && p.running.Load() {
				log.Printf("⚠️ IPC read error: %v", err)
			}
			return
		}

		switch msgType {
		case MsgTypeIntent:
			p.handleIntent(data)
		case MsgTypePing:
			v.write(MsgTypePong, nil)
		}
	}
}

func (p *Publisher) handleIntent(data []byte) {
	msg, err := DecodeIntent(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode intent: %v", err)
		return
	}
	p.intentsReceived.Add(1)

	if p.input == nil {
		return
	}
	if _, err := p.input.Submit("ipc", msg.Intent, msg.Mode); err != nil {
		log.Printf("⚠️ IPC intent %q dropped: %v", msg.Intent, err)
	}
}

// broadcastLoop broadcasts snapshots to all clients
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return

		case msg := <-p.snapshotCh:
			p.broadcast(msg)
		}
	}
}

// broadcast sends a snapshot to all connected clients
func (p *Publisher) broadcast(msg *SnapshotMessage) {
	p.clientsMu.RLock()
	clients := make([]*viewer, 0, len(p.clients))
	for _, v := range p.clients {
		clients = append(clients, v)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, v := range clients {
		if err := v.write(MsgTypeSnapshot, msg); err != nil {
			failed = append(failed, v.conn)
		}
	}

	// Remove failed clients
	for _, conn := range failed {
		p.removeClient(conn)
	}

	if len(clients) > 0 && len(failed) < len(clients) {
		p.snapshotsSent.Add(1)
	}
}
