package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/nayana/internal/store"
)

// DefaultListLimit caps GET /api/rounds when no limit is given.
const DefaultListLimit = 50

// RoundHandler handles HTTP requests for round history resources.
type RoundHandler struct {
	store *store.Store
}

// NewRoundHandler creates a new RoundHandler with the given store.
func NewRoundHandler(s *store.Store) *RoundHandler {
	return &RoundHandler{store: s}
}

// ServeHTTP routes /api/rounds, /api/rounds/stats and /api/rounds/{id}.
func (h *RoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rounds")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	case "stats":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stats(w)
		return
	}

	if strings.Contains(path, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, path)
	case http.MethodDelete:
		h.delete(w, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type roundResponse struct {
	ID            string `json:"id"`
	CalibrationID string `json:"calibration_id,omitempty"`
	Round         int    `json:"round"`
	Mode          string `json:"mode"`
	Difficulty    string `json:"difficulty"`
	Outcome       string `json:"outcome"`
	Winner        string `json:"winner,omitempty"`
	Moves         int    `json:"moves"`
	Ticks         int64  `json:"ticks"`
	Board         string `json:"board"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
}

type listRoundsResponse struct {
	Rounds []roundResponse `json:"rounds"`
}

func toRoundResponse(rd *store.Round) roundResponse {
	return roundResponse{
		ID:            rd.ID,
		CalibrationID: rd.CalibrationID,
		Round:         rd.Round,
		Mode:          rd.Mode,
		Difficulty:    rd.Difficulty,
		Outcome:       rd.Outcome,
		Winner:        rd.Winner,
		Moves:         rd.Moves,
		Ticks:         rd.Ticks,
		Board:         rd.Board,
		StartedAt:     rd.StartedAt.Format(time.RFC3339),
		FinishedAt:    rd.FinishedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/rounds?limit=N.
func (h *RoundHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	rounds, err := h.store.Rounds().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list rounds")
		return
	}

	response := listRoundsResponse{
		Rounds: make([]roundResponse, 0, len(rounds)),
	}
	for _, rd := range rounds {
		response.Rounds = append(response.Rounds, toRoundResponse(rd))
	}

	WriteJSON(w, http.StatusOK, response)
}

// stats handles GET /api/rounds/stats.
func (h *RoundHandler) stats(w http.ResponseWriter) {
	stats, err := h.store.Rounds().Stats()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// get handles GET /api/rounds/{id}.
func (h *RoundHandler) get(w http.ResponseWriter, id string) {
	rd, err := h.store.Rounds().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Round not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get round")
		return
	}

	WriteJSON(w, http.StatusOK, toRoundResponse(rd))
}

// delete handles DELETE /api/rounds/{id}.
func (h *RoundHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Rounds().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Round not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to delete round")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
