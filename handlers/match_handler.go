package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"github.com/academyhq/tournament-engine/services"
)

type MatchHandler struct {
	resultService services.ResultService
	logger        *slog.Logger
}

func NewMatchHandler(resultService services.ResultService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{resultService: resultService, logger: logger}
}

func (h *MatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := repositories.ListMatchesFilter{}
	query := r.URL.Query()

	if raw := query.Get("round"); raw != "" {
		round, convErr := strconv.Atoi(raw)
		if convErr != nil {
			errorResponse(w, http.StatusBadRequest, "invalid round parameter")
			return
		}
		filter.Round = &round
	}
	if raw := query.Get("stage"); raw != "" {
		stage := models.MatchStage(raw)
		filter.Stage = &stage
	}
	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("group"); raw != "" {
		groupNo, convErr := strconv.Atoi(raw)
		if convErr != nil {
			errorResponse(w, http.StatusBadRequest, "invalid group parameter")
			return
		}
		filter.GroupNo = &groupNo
	}

	matches, err := h.resultService.ListMatches(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"matches": matches})
}

func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var outcome models.Outcome
	if err := readJSON(w, r, &outcome); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	match, err := h.resultService.SubmitResult(r.Context(), matchID, outcome)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}
