package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"songclash/internal/cache"
	"songclash/internal/game"
	"songclash/internal/service"
	"songclash/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// GameHandler handles game endpoints
type GameHandler struct {
	gameSvc     *service.GameService
	teamSvc     *service.TeamService
	states      service.StateReader
	actions     *service.ActionGateway
	leaderboard cache.LeaderboardCache
}

// NewGameHandler creates a new game handler
func NewGameHandler(
	gameSvc *service.GameService,
	teamSvc *service.TeamService,
	states service.StateReader,
	actions *service.ActionGateway,
	leaderboard cache.LeaderboardCache,
) *GameHandler {
	return &GameHandler{
		gameSvc:     gameSvc,
		teamSvc:     teamSvc,
		states:      states,
		actions:     actions,
		leaderboard: leaderboard,
	}
}

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	CreatorID string `json:"creatorId"`
}

// Create handles POST /v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CreatorID == "" {
		writeError(w, http.StatusBadRequest, "creatorId is required")
		return
	}

	resp, err := h.gameSvc.CreateGame(r.Context(), req.CreatorID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /v1/games/{slug}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// State handles GET /v1/games/{slug}/state
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	st, err := h.states.State(r.Context(), g.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// Action handles POST /v1/games/{slug}/actions
func (h *GameHandler) Action(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	var a game.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.actions.Submit(r.Context(), middleware.GetClaims(r.Context()), g.ID, a)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// Leaderboard handles GET /v1/games/{slug}/leaderboard
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	topStr := r.URL.Query().Get("top")
	top := 20
	if topStr != "" {
		if n, err := strconv.Atoi(topStr); err == nil && n > 0 {
			top = n
		}
	}

	entries, err := h.leaderboard.GetTop(r.Context(), g.ID, top)
	if err != nil || len(entries) == 0 {
		// cache is cold or unavailable; rank from the authoritative state
		entries, err = h.rankFromState(r.Context(), g.ID, top)
		if err != nil {
			writeFailure(w, err)
			return
		}
	}

	teams, err := h.teamSvc.ListTeams(r.Context(), g.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	names := make(map[int64]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	for i := range entries {
		entries[i].Name = names[entries[i].TeamID]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

func (h *GameHandler) rankFromState(ctx context.Context, gameID string, top int) ([]cache.LeaderboardEntry, error) {
	st, err := h.states.State(ctx, gameID)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.LeaderboardEntry, 0, len(st.Scores))
	for id, score := range st.Scores {
		entries = append(entries, cache.LeaderboardEntry{TeamID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TeamID < entries[j].TeamID
	})
	if len(entries) > top {
		entries = entries[:top]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
