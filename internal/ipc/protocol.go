// Package ipc streams game snapshots to local viewers and carries their
// intents back over a Unix socket (TCP localhost on Windows).
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// DefaultSocketPath is the default Unix socket path for IPC
	DefaultSocketPath = "/tmp/snake-arena.sock"

	// DefaultTCPPort is used instead of the socket on Windows
	DefaultTCPPort = "127.0.0.1:7788"

	// Message types
	MsgTypeSnapshot uint8 = 0x01
	MsgTypePing     uint8 = 0x02
	MsgTypePong     uint8 = 0x03
	MsgTypeConfig   uint8 = 0x04
	MsgTypeIntent   uint8 = 0x05

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Max message size (1MB should be plenty for snapshots)
	MaxMessageSize = 1024 * 1024

	// Timeouts
	WriteTimeout   = 50 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
	MaxReconnects  = 20
)

var (
	ErrMessageTooLarge = errors.New("ipc: message too large")
	ErrVersionMismatch = errors.New("ipc: protocol version mismatch")
)

// Header is the fixed-size message header (8 bytes)
// [0-1] version uint16
// [2]   type uint8
// [3]   reserved
// [4-7] payload length uint32
type Header struct {
	Version    uint16
	Type       uint8
	Reserved   uint8
	PayloadLen uint32
}

const HeaderSize = 8

// Position is one grid cell in pixels
type Position struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

// FoodData is the food on the board
type FoodData struct {
	X              int     `msgpack:"x"`
	Y              int     `msgpack:"y"`
	Kind           string  `msgpack:"kind"`
	Score          int     `msgpack:"score"`
	RemainingRatio float64 `msgpack:"ratio"`
	Expires        bool    `msgpack:"expires"`
}

// EffectData is one active effect with its remaining time
type EffectData struct {
	Kind        string `msgpack:"kind"`
	RemainingMs int64  `msgpack:"remainingMs"`
}

// SnapshotMessage is the wire form of a game snapshot.
// Enums travel as their names so viewers need no game package.
type SnapshotMessage struct {
	Sequence   uint64 `msgpack:"seq"`
	Timestamp  int64  `msgpack:"ts"` // Unix nano
	TickNumber uint64 `msgpack:"tick"`

	State      string `msgpack:"state"`
	Mode       string `msgpack:"mode"`
	Outcome    string `msgpack:"outcome"`
	EndReason  string `msgpack:"endReason,omitempty"`
	Difficulty string `msgpack:"difficulty"`

	Score     int   `msgpack:"score"`
	Level     int   `msgpack:"level"`
	FoodEaten int   `msgpack:"foodEaten"`
	Combo     int   `msgpack:"combo"`
	HighScore int   `msgpack:"highScore"`
	NewRecord bool  `msgpack:"newRecord"`
	GameTime  int64 `msgpack:"gameTimeMs"`

	Snake      []Position   `msgpack:"snake"`
	Direction  string       `msgpack:"dir"`
	HasFood    bool         `msgpack:"hasFood"`
	Food       FoodData     `msgpack:"food"`
	Obstacles  []Position   `msgpack:"obstacles"`
	Effects    []EffectData `msgpack:"effects"`
	Invincible bool         `msgpack:"invincible"`

	Width    int `msgpack:"w"`
	Height   int `msgpack:"h"`
	GridSize int `msgpack:"grid"`
}

// ConfigMessage is sent once to each viewer on connect
type ConfigMessage struct {
	Width      int    `msgpack:"width"`
	Height     int    `msgpack:"height"`
	GridSize   int    `msgpack:"gridSize"`
	TickRate   int    `msgpack:"tickRate"`
	Mode       string `msgpack:"mode"`
	Difficulty string `msgpack:"difficulty"`
	Boundary   string `msgpack:"boundary"`
}

// IntentMessage is a player action sent by a viewer
type IntentMessage struct {
	Intent string `msgpack:"intent"`
	Mode   string `msgpack:"mode,omitempty"`
}

// WriteMessage writes a framed message to the writer
func WriteMessage(w io.Writer, msgType uint8, payload interface{}) error {
	var data []byte
	if payload != nil {
		buf := getBuffer()
		defer putBuffer(buf)

		enc := msgpack.GetEncoder()
		enc.Reset(buf)
		err := enc.Encode(payload)
		msgpack.PutEncoder(enc)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		data = buf.Bytes()
	}

	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	// Header and payload go out in a single write
	frame := make([]byte, HeaderSize+len(data))
	binary.LittleEndian.PutUint16(frame[0:2], ProtocolVersion)
	frame[2] = msgType
	frame[3] = 0 // reserved
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(data)))
	copy(frame[HeaderSize:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a framed message from the reader
// Returns message type and raw payload bytes
func ReadMessage(r io.Reader) (uint8, []byte, error) {
	var headerBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return 0, nil, err
	}

	header := Header{
		Version:    binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:       headerBuf[2],
		Reserved:   headerBuf[3],
		PayloadLen: binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, header.Version, ProtocolVersion)
	}

	if header.PayloadLen > MaxMessageSize {
		return 0, nil, ErrMessageTooLarge
	}

	if header.PayloadLen == 0 {
		return header.Type, nil, nil
	}

	payload := make([]byte, header.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}

	return header.Type, payload, nil
}

// Decode unmarshals a msgpack payload into v
func Decode(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// DecodeSnapshot decodes a snapshot message from bytes
func DecodeSnapshot(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := Decode(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeConfig decodes a config message from bytes
func DecodeConfig(data []byte) (*ConfigMessage, error) {
	var msg ConfigMessage
	if err := Decode(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeIntent decodes an intent message from bytes
func DecodeIntent(data []byte) (*IntentMessage, error) {
	var msg IntentMessage
	if err := Decode(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}

// CreateListener creates the platform listener (Unix socket or TCP localhost)
func CreateListener(socketPath string) (net.Listener, error) {
	return CreatePlatformListener(socketPath)
}

// Connect connects to the IPC endpoint with retries
func Connect(socketPath string, maxRetries int) (net.Conn, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := ConnectPlatform(socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(ReconnectDelay)
	}
	return nil, fmt.Errorf("connect %s after %d attempts: %w", GetPlatformAddress(socketPath), maxRetries, lastErr)
}

// Buffer pool for encoding
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 16*1024))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}
