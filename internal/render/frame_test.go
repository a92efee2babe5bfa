package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"snake-arena/internal/game"
)

func testSnapshot() game.Snapshot {
	return game.Snapshot{
		State:     game.StatePlaying,
		Mode:      game.ModeClassic,
		Score:     120,
		Level:     1,
		Snake:     []game.Position{{X: 100, Y: 100}, {X: 80, Y: 100}, {X: 60, Y: 100}},
		Direction: game.Right,
		HasFood:   true,
		Food:      game.FoodSnapshot{X: 200, Y: 200, Kind: game.FoodNormal},
		Obstacles: []game.Position{{X: 300, Y: 300}},
		Board:     game.BoardSnapshot{Width: 400, Height: 400, GridSize: 20},
	}
}

func colorAt(t *testing.T, r *FrameRenderer, snap game.Snapshot, x, y int) color.RGBA {
	t.Helper()
	img := r.Render(snap)
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff0000", color.RGBA{255, 0, 0, 255}},
		{"#00d4ff", color.RGBA{0, 212, 255, 255}},
		{"00d4ff", color.RGBA{255, 255, 255, 255}},
		{"#zzzzzz", color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseHexColor(tt.in); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRenderDrawsEntities(t *testing.T) {
	theme := DefaultTheme()
	r := NewFrameRenderer(theme)
	snap := testSnapshot()

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"head", 110, 110, theme.SnakeHead},
		{"body", 70, 110, theme.SnakeBody},
		{"food", 210, 210, theme.Food[game.FoodNormal]},
		{"obstacle", 310, 310, theme.Obstacle},
		{"empty cell", 250, 350, theme.Background},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorAt(t, r, snap, tt.x, tt.y); got != tt.want {
				t.Errorf("Expected %v at (%d,%d), got %v", tt.want, tt.x, tt.y, got)
			}
		})
	}
}

func TestRenderInvincibleBody(t *testing.T) {
	theme := DefaultTheme()
	r := NewFrameRenderer(theme)
	snap := testSnapshot()
	snap.Invincible = true

	if got := colorAt(t, r, snap, 70, 110); got != theme.Invincible {
		t.Errorf("Expected invincible color %v, got %v", theme.Invincible, got)
	}
}

func TestRenderOverlayDimsBoard(t *testing.T) {
	theme := DefaultTheme()
	r := NewFrameRenderer(theme)
	snap := testSnapshot()
	snap.State = game.StatePaused

	got := colorAt(t, r, snap, 250, 350)
	if got == theme.Background {
		t.Error("Expected paused overlay to change the background")
	}
	if got.R > theme.Background.R || got.G > theme.Background.G || got.B > theme.Background.B {
		t.Errorf("Expected overlay to darken, got %v", got)
	}
}

func TestWritePNGResizesWithBoard(t *testing.T) {
	r := NewFrameRenderer(DefaultTheme())

	for _, size := range []int{400, 200} {
		snap := testSnapshot()
		snap.Board.Width, snap.Board.Height = size, size

		var buf bytes.Buffer
		if err := r.WritePNG(&buf, snap); err != nil {
			t.Fatalf("WritePNG failed: %v", err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if img.Bounds().Dx() != size || img.Bounds().Dy() != size {
			t.Errorf("Expected %dx%d, got %v", size, size, img.Bounds())
		}
	}
	if r.Rendered() != 2 {
		t.Errorf("Expected 2 frames, got %d", r.Rendered())
	}
}

func TestRenderConcurrent(t *testing.T) {
	r := NewFrameRenderer(DefaultTheme())
	snap := testSnapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := r.WritePNG(&buf, snap); err != nil {
				t.Errorf("WritePNG failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if r.Rendered() != 8 {
		t.Errorf("Expected 8 frames, got %d", r.Rendered())
	}
}

func TestLoadFontMissingFile(t *testing.T) {
	r := NewFrameRenderer(DefaultTheme())
	if err := r.LoadFont("/nonexistent/font.ttf"); err == nil {
		t.Error("Expected error for missing font")
	}
}

func BenchmarkWritePNG(b *testing.B) {
	r := NewFrameRenderer(DefaultTheme())
	snap := testSnapshot()
	var buf bytes.Buffer

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		r.WritePNG(&buf, snap)
	}
}
