package handler

import (
	"encoding/json"
	"net/http"

	"songclash/internal/model"
	"songclash/internal/service"
	"songclash/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// TeamHandler handles team and membership endpoints
type TeamHandler struct {
	gameSvc *service.GameService
	teamSvc *service.TeamService
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(gameSvc *service.GameService, teamSvc *service.TeamService) *TeamHandler {
	return &TeamHandler{
		gameSvc: gameSvc,
		teamSvc: teamSvc,
	}
}

// CreateTeamRequest is the request body for creating a team
type CreateTeamRequest struct {
	Name string `json:"name"`
}

// Create handles POST /v1/games/{slug}/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	if middleware.GetClaims(r.Context()).GameID != g.ID {
		writeError(w, http.StatusForbidden, "token not valid for this game")
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	team, err := h.teamSvc.CreateTeam(r.Context(), g.ID, req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, team)
}

// List handles GET /v1/games/{slug}/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	teams, err := h.teamSvc.ListTeams(r.Context(), g.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// Join handles POST /v1/games/{slug}/join
func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	g, err := h.gameSvc.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req model.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TeamID == 0 {
		writeError(w, http.StatusBadRequest, "teamId is required")
		return
	}

	resp, err := h.teamSvc.Join(r.Context(), g.ID, &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Leave handles DELETE /v1/games/{slug}/members/{playerId}
func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	g, err := h.gameSvc.GetBySlug(r.Context(), vars["slug"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	claims := middleware.GetClaims(r.Context())
	playerID := vars["playerId"]
	if claims.GameID != g.ID || (!claims.IsHost() && claims.PlayerID != playerID) {
		writeError(w, http.StatusForbidden, "only the host or the player may do that")
		return
	}

	if err := h.teamSvc.Leave(r.Context(), g.ID, playerID); err != nil {
		writeFailure(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
