// Package render draws game snapshots into images with fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"

	"snake-arena/internal/game"
)

// Theme is the palette of a rendered frame
type Theme struct {
	Background color.RGBA
	Grid       color.RGBA
	SnakeHead  color.RGBA
	SnakeBody  color.RGBA
	Invincible color.RGBA
	Obstacle   color.RGBA
	Text       color.RGBA
	Overlay    color.RGBA
	Food       map[game.FoodKind]color.RGBA
}

// DefaultTheme returns the dark arcade palette
func DefaultTheme() Theme {
	return Theme{
		Background: color.RGBA{12, 12, 28, 255},
		Grid:       color.RGBA{30, 30, 45, 255},
		SnakeHead:  ParseHexColor("#00d4ff"),
		SnakeBody:  ParseHexColor("#0a84a8"),
		Invincible: ParseHexColor("#ffd700"),
		Obstacle:   ParseHexColor("#6b6b80"),
		Text:       color.RGBA{255, 255, 255, 255},
		Overlay:    color.RGBA{0, 0, 0, 170},
		Food: map[game.FoodKind]color.RGBA{
			game.FoodNormal:      ParseHexColor("#ff3c3c"),
			game.FoodBonus:       ParseHexColor("#ffd700"),
			game.FoodSpeedUp:     ParseHexColor("#3cff6b"),
			game.FoodSlowDown:    ParseHexColor("#3c8cff"),
			game.FoodDoubleScore: ParseHexColor("#d03cff"),
		},
	}
}

// ParseHexColor parses "#rrggbb", returning white on bad input
func ParseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{r, g, b, 255}
}

// FrameRenderer draws snapshots onto a cached gg.Context. Safe for concurrent
// use; renders are serialized.
type FrameRenderer struct {
	theme Theme

	mu       sync.Mutex
	dc       *gg.Context
	face     font.Face
	bigFace  font.Face
	encoder  png.Encoder
	buffers  sync.Pool
	rendered uint64
}

// NewFrameRenderer creates a renderer using the built-in bitmap font
func NewFrameRenderer(theme Theme) *FrameRenderer {
	return &FrameRenderer{
		theme:   theme,
		face:    basicfont.Face7x13,
		bigFace: basicfont.Face7x13,
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
		buffers: sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
}

// LoadFont replaces the bitmap font with a TrueType/OpenType file
func (r *FrameRenderer) LoadFont(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font: %w", err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	small, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 16, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	large, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 36, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}

	r.mu.Lock()
	r.face, r.bigFace = small, large
	r.mu.Unlock()

	log.Printf("✅ Frame font loaded from: %s", path)
	return nil
}

// Render draws snap and returns a copy of the frame
func (r *FrameRenderer) Render(snap game.Snapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := r.draw(snap)
	src := dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// WritePNG draws snap and encodes it to w
func (r *FrameRenderer) WritePNG(w io.Writer, snap game.Snapshot) error {
	buf := r.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer r.buffers.Put(buf)

	r.mu.Lock()
	dc := r.draw(snap)
	err := r.encoder.Encode(buf, dc.Image())
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	_, err = buf.WriteTo(w)
	return err
}

// Rendered returns the number of frames drawn
func (r *FrameRenderer) Rendered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// draw renders snap into the cached context. Caller holds r.mu.
func (r *FrameRenderer) draw(snap game.Snapshot) *gg.Context {
	w, h := snap.Board.Width, snap.Board.Height
	if w <= 0 || h <= 0 {
		w, h = 600, 600
	}
	if r.dc == nil || r.dc.Width() != w || r.dc.Height() != h {
		r.dc = gg.NewContext(w, h)
	}
	dc := r.dc
	r.rendered++

	r.drawBackground(dc, snap.Board)
	r.drawObstacles(dc, snap)
	if snap.HasFood {
		r.drawFood(dc, snap)
	}
	r.drawSnake(dc, snap)
	r.drawHUD(dc, snap)
	r.drawOverlay(dc, snap)
	return dc
}

func (r *FrameRenderer) drawBackground(dc *gg.Context, b game.BoardSnapshot) {
	dc.SetColor(r.theme.Background)
	dc.Clear()

	if b.GridSize <= 0 {
		return
	}
	dc.SetColor(r.theme.Grid)
	dc.SetLineWidth(1)
	for x := 0; x <= b.Width; x += b.GridSize {
		dc.DrawLine(float64(x)+0.5, 0, float64(x)+0.5, float64(b.Height))
	}
	for y := 0; y <= b.Height; y += b.GridSize {
		dc.DrawLine(0, float64(y)+0.5, float64(b.Width), float64(y)+0.5)
	}
	dc.Stroke()
}

func (r *FrameRenderer) drawObstacles(dc *gg.Context, snap game.Snapshot) {
	g := float64(snap.Board.GridSize)
	dc.SetColor(r.theme.Obstacle)
	for _, o := range snap.Obstacles {
		dc.DrawRectangle(float64(o.X)+1, float64(o.Y)+1, g-2, g-2)
	}
	dc.Fill()
}

func (r *FrameRenderer) drawFood(dc *gg.Context, snap game.Snapshot) {
	g := float64(snap.Board.GridSize)
	f := snap.Food
	c, ok := r.theme.Food[f.Kind]
	if !ok {
		c = r.theme.Text
	}
	// Expiring food fades out
	if f.Expires {
		c.A = uint8(80 + 175*f.RemainingRatio)
	}

	dc.SetColor(c)
	dc.DrawCircle(float64(f.X)+g/2, float64(f.Y)+g/2, g/2-2)
	dc.Fill()
}

func (r *FrameRenderer) drawSnake(dc *gg.Context, snap game.Snapshot) {
	g := float64(snap.Board.GridSize)

	body := r.theme.SnakeBody
	if snap.Invincible {
		body = r.theme.Invincible
	}
	for i := len(snap.Snake) - 1; i >= 1; i-- {
		p := snap.Snake[i]
		dc.DrawRoundedRectangle(float64(p.X)+1, float64(p.Y)+1, g-2, g-2, g/5)
	}
	dc.SetColor(body)
	dc.Fill()

	if len(snap.Snake) == 0 {
		return
	}
	head := snap.Snake[0]
	dc.SetColor(r.theme.SnakeHead)
	dc.DrawRoundedRectangle(float64(head.X), float64(head.Y), g, g, g/4)
	dc.Fill()

	// Eyes look along the heading
	cx, cy := float64(head.X)+g/2, float64(head.Y)+g/2
	dx, dy := float64(snap.Direction.DX), float64(snap.Direction.DY)
	ex, ey := cx+dx*g/5, cy+dy*g/5
	px, py := -dy*g/5, dx*g/5
	dc.SetColor(r.theme.Background)
	dc.DrawCircle(ex+px, ey+py, g/10)
	dc.DrawCircle(ex-px, ey-py, g/10)
	dc.Fill()
}

func (r *FrameRenderer) drawHUD(dc *gg.Context, snap game.Snapshot) {
	dc.SetFontFace(r.face)
	dc.SetColor(r.theme.Text)

	left := fmt.Sprintf("%s  SCORE %d  LV %d", snap.Mode, snap.Score, snap.Level)
	if snap.Combo > 1 {
		left += fmt.Sprintf("  x%d", snap.Combo)
	}
	dc.DrawString(left, 8, 16)
	dc.DrawStringAnchored(fmt.Sprintf("BEST %d", snap.HighScore), float64(dc.Width())-8, 16, 1, 0)

	y := 32.0
	for _, e := range snap.Effects {
		dc.DrawString(fmt.Sprintf("%s %.1fs", e.Kind, e.Remaining.Seconds()), 8, y)
		y += 16
	}
}

func (r *FrameRenderer) drawOverlay(dc *gg.Context, snap game.Snapshot) {
	var title, subtitle string
	switch snap.State {
	case game.StateMenu:
		title, subtitle = "SNAKE ARENA", "press enter to start"
	case game.StatePaused:
		title, subtitle = "PAUSED", "press p to resume"
	case game.StateGameOver:
		title = "GAME OVER"
		if snap.Outcome == game.OutcomeWon {
			title = "YOU WIN"
		}
		subtitle = fmt.Sprintf("score %d  -  press r to restart", snap.Score)
		if snap.NewRecord {
			subtitle = fmt.Sprintf("new high score %d!  -  press r to restart", snap.Score)
		}
	default:
		return
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	dc.SetColor(r.theme.Overlay)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(r.theme.Text)
	dc.SetFontFace(r.bigFace)
	dc.DrawStringAnchored(title, w/2, h/2-12, 0.5, 0.5)
	dc.SetFontFace(r.face)
	dc.DrawStringAnchored(subtitle, w/2, h/2+16, 0.5, 0.5)
}
