package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"songclash/internal/broadcast"
	"songclash/internal/game"
	"songclash/internal/repository"
	"songclash/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeFailure maps err to a status. Game rule violations keep their code
// in the body so clients can tell them apart.
func writeFailure(w http.ResponseWriter, err error) {
	var ae *game.ActionError
	if errors.As(err, &ae) {
		writeJSON(w, actionStatus(ae), map[string]interface{}{
			"error": ae.Message,
			"code":  ae.Code,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrGameNotFound),
		errors.Is(err, service.ErrTeamNotFound),
		errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrNotAMember):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrAlreadyOnTeam):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, broadcast.ErrNoCoordinator), errors.Is(err, service.ErrCoordinatorClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func actionStatus(ae *game.ActionError) int {
	switch {
	case ae.Is(game.ErrValidation):
		return http.StatusBadRequest
	case ae.Is(game.ErrForbidden):
		return http.StatusForbidden
	case ae.Is(game.ErrIntegrity):
		return http.StatusInternalServerError
	case ae.Is(game.ErrUnavailable):
		return http.StatusServiceUnavailable
	case ae.Precondition():
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
