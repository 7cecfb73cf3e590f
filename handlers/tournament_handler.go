package handlers

import (
	"log/slog"
	"net/http"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"github.com/academyhq/tournament-engine/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	generationService services.GenerationService
	stageService      services.StageService
	rankingService    services.RankingService
	logger            *slog.Logger
}

func NewTournamentHandler(
	tournamentService services.TournamentService,
	generationService services.GenerationService,
	stageService services.StageService,
	rankingService services.RankingService,
	logger *slog.Logger,
) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		generationService: generationService,
		stageService:      stageService,
		rankingService:    rankingService,
		logger:            logger,
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{}
	query := r.URL.Query()

	if raw := query.Get("format"); raw != "" {
		format := models.TournamentFormat(raw)
		filter.Format = &format
	}
	if raw := query.Get("kind"); raw != "" {
		kind := models.HeadToHeadKind(raw)
		filter.Kind = &kind
	}
	if raw := query.Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		filter.Status = &status
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments})
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tournament, err := h.tournamentService.GetDetails(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

// Start triggers session generation. Large cohorts come back 202 with a job
// id; everything else returns the full match list, repeated calls included.
func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.generationService.StartTournament(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	if result.Dispatched {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TournamentHandler) FinalizeGroupStage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.stageService.FinalizeGroupStage(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *TournamentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tournament, err := h.tournamentService.Complete(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tournament, err := h.tournamentService.Cancel(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tournamentService.Delete(r.Context(), id); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.rankingService.GetRankings(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"rankings": rows})
}
