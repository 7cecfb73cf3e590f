package services

import (
	"context"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
)

// Lifecycle transitions are one-directional; cancelled is reachable from
// every non-terminal state and completed still has reward distribution
// ahead of it.
func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	if next == models.StatusCancelled {
		return !current.IsTerminal()
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:           {models.StatusActive},
		models.StatusActive:          {models.StatusGroupStage, models.StatusResultsComplete},
		models.StatusGroupStage:      {models.StatusKnockoutStage},
		models.StatusKnockoutStage:   {models.StatusResultsComplete},
		models.StatusResultsComplete: {models.StatusCompleted},
		models.StatusCompleted:       {models.StatusRewardsDistributed},
	}
	for _, candidate := range allowed[current] {
		if next == candidate {
			return true
		}
	}
	return false
}

// transitionStatus validates and applies one lifecycle step, keeping the
// in-memory entity in sync with the row.
func transitionStatus(ctx context.Context, exec repositories.SQLExecutor, repo repositories.TournamentRepository, t *models.Tournament, next models.TournamentStatus) error {
	if t.Status == next {
		return nil
	}
	if !isValidStatusTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, next)
	}
	if err := repo.UpdateStatus(ctx, exec, t.ID, next); err != nil {
		return fmt.Errorf("failed to update tournament %d status to %s: %w", t.ID, next, err)
	}
	t.Status = next
	return nil
}
