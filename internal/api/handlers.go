package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/input"
	"snake-arena/internal/store"
)

// MaxImportBytes bounds the body of POST /api/import
const MaxImportBytes = 1 << 20

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Config())
}

func (h *routerHandlers) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Stats())
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Renderer not available", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.WritePNG(w, h.engine.Snapshot()); err != nil {
		log.Printf("⚠️ Frame render failed: %v", err)
		return
	}
	RecordRender(time.Since(start))
}

// inputRequest is the body of POST /api/input and of WebSocket client frames
type inputRequest struct {
	Intent string `json:"intent"`
	Mode   string `json:"mode,omitempty"`
}

func (h *routerHandlers) handlePostInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Intent == "" {
		writeError(w, "Intent is required", http.StatusBadRequest)
		return
	}

	in, err := h.input.Submit("http:"+GetClientIP(r), req.Intent, req.Mode)
	if err != nil {
		writeError(w, err.Error(), inputErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted": true,
		"intent":   in.Type.String(),
	})
}

func inputErrorStatus(err error) int {
	switch {
	case errors.Is(err, input.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, input.ErrRateLimited):
		RecordConnectionRejected("rate_limit")
		return http.StatusTooManyRequests
	case errors.Is(err, input.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *routerHandlers) handleGetHighScores(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, store.MaxHighScores)
	if !ok {
		return
	}

	if m := r.URL.Query().Get("mode"); m != "" {
		mode, err := game.ParseMode(m)
		if err != nil {
			writeError(w, "Unknown mode", http.StatusBadRequest)
			return
		}
		writeJSON(w, h.store.HighScores(mode, limit))
		return
	}

	all := make(map[string][]store.HighScoreEntry, len(game.AllModes))
	for _, mode := range game.AllModes {
		all[mode.String()] = h.store.HighScores(mode, limit)
	}
	writeJSON(w, all)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Stats())
}

func (h *routerHandlers) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Achievements())
}

func (h *routerHandlers) handleGetGames(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}
	games, err := h.store.RecentGames(r.Context(), limit)
	if err != nil {
		log.Printf("⚠️ Recent games query failed: %v", err)
		writeError(w, "Failed to load games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []store.GameRecord{}
	}
	writeJSON(w, games)
}

func (h *routerHandlers) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="snake-arena-export.json"`)
	writeJSON(w, h.store.Export())
}

func (h *routerHandlers) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)

	var data store.ExportData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.store.Import(r.Context(), data); err != nil {
		if errors.Is(err, store.ErrInvalidData) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("⚠️ Import failed: %v", err)
		writeError(w, "Import failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":      true,
		"highScores":   len(data.HighScores),
		"achievements": len(data.Achievements),
	})
}

// parseLimit reads ?limit=, writing a 400 on bad input
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, 100), true
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
