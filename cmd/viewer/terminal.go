package main

import (
	"fmt"

	"snake-arena/internal/ipc"

	"github.com/gdamore/tcell/v2"
)

// Each board cell is two terminal columns wide so cells look square
const cellWidth = 2

// keyIntent maps a key press to an intent name and optional mode.
// quit is set for the keys that close the viewer.
func keyIntent(ev *tcell.EventKey) (intent, mode string, quit bool) {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return "", "", true
	case tcell.KeyUp:
		return "up", "", false
	case tcell.KeyDown:
		return "down", "", false
	case tcell.KeyLeft:
		return "left", "", false
	case tcell.KeyRight:
		return "right", "", false
	case tcell.KeyEnter:
		return "start", "", false
	case tcell.KeyEscape:
		return "menu", "", false
	case tcell.KeyRune:
	default:
		return "", "", false
	}

	switch ev.Rune() {
	case 'q', 'Q':
		return "", "", true
	case 'w', 'W':
		return "up", "", false
	case 's', 'S':
		return "down", "", false
	case 'a', 'A':
		return "left", "", false
	case 'd', 'D':
		return "right", "", false
	case 'p', 'P', ' ':
		return "pause", "", false
	case 'r', 'R':
		return "restart", "", false
	case 'm', 'M':
		return "menu", "", false
	case '1':
		return "start", "CLASSIC", false
	case '2':
		return "start", "CHALLENGE", false
	case '3':
		return "start", "ENDLESS", false
	}
	return "", "", false
}

// terminal draws snapshots onto a tcell screen
type terminal struct {
	screen tcell.Screen

	border     tcell.Style
	text       tcell.Style
	head       tcell.Style
	body       tcell.Style
	invincible tcell.Style
	obstacle   tcell.Style
	food       map[string]tcell.Style
}

func newTerminal(screen tcell.Screen) *terminal {
	base := tcell.StyleDefault
	return &terminal{
		screen:     screen,
		border:     base.Foreground(tcell.ColorGray),
		text:       base.Foreground(tcell.ColorWhite),
		head:       base.Foreground(tcell.NewRGBColor(0, 212, 255)),
		body:       base.Foreground(tcell.NewRGBColor(10, 132, 168)),
		invincible: base.Foreground(tcell.ColorGold),
		obstacle:   base.Foreground(tcell.NewRGBColor(107, 107, 128)),
		food: map[string]tcell.Style{
			"NORMAL":       base.Foreground(tcell.ColorRed),
			"BONUS":        base.Foreground(tcell.ColorGold),
			"SPEED_UP":     base.Foreground(tcell.ColorGreen),
			"SLOW_DOWN":    base.Foreground(tcell.ColorBlue),
			"DOUBLE_SCORE": base.Foreground(tcell.ColorPurple),
		},
	}
}

// draw renders msg; the board starts at row 1 below the HUD line
func (t *terminal) draw(msg *ipc.SnapshotMessage) {
	t.screen.Clear()
	if msg == nil {
		t.print(0, 0, t.text, "waiting for server...")
		t.screen.Show()
		return
	}

	cols, rows := msg.Columns(), msg.Rows()
	hud := fmt.Sprintf("%s  score %d  level %d  best %d", msg.Mode, msg.Score, msg.Level, msg.HighScore)
	if msg.Combo > 1 {
		hud += fmt.Sprintf("  combo x%d", msg.Combo)
	}
	t.print(0, 0, t.text, hud)

	t.drawBorder(cols, rows)

	for _, o := range msg.Obstacles {
		t.fillCell(msg, o, '▓', t.obstacle)
	}
	if msg.HasFood {
		style, ok := t.food[msg.Food.Kind]
		if !ok {
			style = t.text
		}
		t.fillCell(msg, msg.Food.Position(), '●', style)
	}

	body := t.body
	if msg.Invincible {
		body = t.invincible
	}
	for i := len(msg.Snake) - 1; i >= 0; i-- {
		style := body
		if i == 0 {
			style = t.head
		}
		t.fillCell(msg, msg.Snake[i], '█', style)
	}

	status := rows + 3
	for i, e := range msg.Effects {
		t.print(0, status+i, t.text, fmt.Sprintf("%s %.1fs", e.Kind, float64(e.RemainingMs)/1000))
	}
	status += len(msg.Effects)

	switch msg.State {
	case "menu":
		t.print(0, status, t.text, "enter/1/2/3: start   q: quit")
	case "paused":
		t.print(0, status, t.text, "PAUSED   p: resume   m: menu")
	case "game_over":
		title := "GAME OVER"
		if msg.Outcome == "won" {
			title = "YOU WIN"
		}
		if msg.NewRecord {
			title += "  new high score!"
		}
		t.print(0, status, t.text, fmt.Sprintf("%s  score %d   r: restart   m: menu", title, msg.Score))
	}

	t.screen.Show()
}

func (t *terminal) drawBorder(cols, rows int) {
	right := cols*cellWidth + 1
	bottom := rows + 2
	for x := 1; x < right; x++ {
		t.screen.SetContent(x, 1, '─', nil, t.border)
		t.screen.SetContent(x, bottom, '─', nil, t.border)
	}
	for y := 2; y < bottom; y++ {
		t.screen.SetContent(0, y, '│', nil, t.border)
		t.screen.SetContent(right, y, '│', nil, t.border)
	}
	t.screen.SetContent(0, 1, '┌', nil, t.border)
	t.screen.SetContent(right, 1, '┐', nil, t.border)
	t.screen.SetContent(0, bottom, '└', nil, t.border)
	t.screen.SetContent(right, bottom, '┘', nil, t.border)
}

// fillCell paints one board cell; positions off the board are skipped
func (t *terminal) fillCell(msg *ipc.SnapshotMessage, p ipc.Position, r rune, style tcell.Style) {
	col, row := msg.Cell(p)
	if p.X < 0 || p.Y < 0 || col >= msg.Columns() || row >= msg.Rows() {
		return
	}
	x, y := 1+col*cellWidth, 2+row
	for i := 0; i < cellWidth; i++ {
		t.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (t *terminal) print(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
