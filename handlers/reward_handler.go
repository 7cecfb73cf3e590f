package handlers

import (
	"log/slog"
	"net/http"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/services"
)

type RewardHandler struct {
	rewardService services.RewardService
	logger        *slog.Logger
}

func NewRewardHandler(rewardService services.RewardService, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardService: rewardService, logger: logger}
}

func (h *RewardHandler) SavePlan(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var plan models.RewardPlan
	if err := readJSON(w, r, &plan); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	plan.TournamentID = tournamentID

	if err := h.rewardService.SaveRewardPlan(r.Context(), &plan); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *RewardHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.rewardService.DistributeRewards(r.Context(), tournamentID, nil)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *RewardHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.rewardService.ListLedger(r.Context(), tournamentID)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"entries": entries})
}
