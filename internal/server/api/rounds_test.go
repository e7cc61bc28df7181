package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/nayana/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func seedRounds(t *testing.T, s *store.Store, outcomes ...string) []*store.Round {
	t.Helper()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var rounds []*store.Round
	for i, outcome := range outcomes {
		winner := ""
		if outcome == "win" {
			winner = "X"
		}
		rd := &store.Round{
			Round:      i + 1,
			Mode:       "vs_computer",
			Difficulty: "easy",
			Outcome:    outcome,
			Winner:     winner,
			Moves:      5,
			Ticks:      600,
			Board:      "XXX/OO./...",
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Rounds().Create(rd); err != nil {
			t.Fatalf("failed to create round: %v", err)
		}
		rounds = append(rounds, rd)
	}
	return rounds
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoundHandler_List(t *testing.T) {
	s := newTestStore(t)
	seedRounds(t, s, "win", "draw", "abandoned")
	handler := NewRoundHandler(s)

	t.Run("all rounds newest first", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response listRoundsResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response.Rounds) != 3 {
			t.Fatalf("expected 3 rounds, got %d", len(response.Rounds))
		}
		if response.Rounds[0].Outcome != "abandoned" {
			t.Errorf("first outcome = %s, want abandoned", response.Rounds[0].Outcome)
		}
	})

	t.Run("limit", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds?limit=1")

		var response listRoundsResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if len(response.Rounds) != 1 {
			t.Errorf("expected 1 round, got %d", len(response.Rounds))
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds?limit=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("post not allowed", func(t *testing.T) {
		rec := serve(handler, http.MethodPost, "/api/rounds")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestRoundHandler_List_Empty(t *testing.T) {
	handler := NewRoundHandler(newTestStore(t))

	rec := serve(handler, http.MethodGet, "/api/rounds")

	var response listRoundsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Rounds == nil || len(response.Rounds) != 0 {
		t.Errorf("expected empty (non-null) rounds list, got %v", response.Rounds)
	}
}

func TestRoundHandler_Stats(t *testing.T) {
	s := newTestStore(t)
	seedRounds(t, s, "win", "win", "draw")
	handler := NewRoundHandler(s)

	rec := serve(handler, http.MethodGet, "/api/rounds/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var stats store.RoundStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := store.RoundStats{Total: 3, XWins: 2, Draws: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestRoundHandler_Get(t *testing.T) {
	s := newTestStore(t)
	rounds := seedRounds(t, s, "win")
	handler := NewRoundHandler(s)

	t.Run("existing round", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds/"+rounds[0].ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		var response roundResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if response.ID != rounds[0].ID || response.Winner != "X" {
			t.Errorf("unexpected response %+v", response)
		}
		if response.FinishedAt != "2026-05-01T09:00:00Z" {
			t.Errorf("finished_at = %s", response.FinishedAt)
		}
	})

	t.Run("missing round", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds/missing")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("nested path", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/rounds/"+rounds[0].ID+"/extra")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestRoundHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	rounds := seedRounds(t, s, "draw")
	handler := NewRoundHandler(s)

	rec := serve(handler, http.MethodDelete, "/api/rounds/"+rounds[0].ID)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/api/rounds/"+rounds[0].ID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(handler, http.MethodPut, "/api/rounds/"+rounds[0].ID)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
