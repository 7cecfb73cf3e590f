package services

import "errors"

// Shared errors across services and HTTP mapping. The taxonomy matters for
// callers: validation errors are never retried, conflict errors carry the
// prior result, transient storage errors are retried by background jobs only.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors.
	ErrValidationFailed          = errors.New("validation failed")
	ErrTournamentNameRequired    = errors.New("tournament name is required")
	ErrTournamentInvalidFormat   = errors.New("invalid tournament format")
	ErrTournamentInvalidMetric   = errors.New("invalid scoring metric")
	ErrTournamentInvalidCapacity = errors.New("tournament capacity must be positive")
	ErrInsufficientParticipants  = errors.New("not enough enrolled participants for this format")
	ErrOutcomeShapeInvalid       = errors.New("outcome payload does not match the tournament format")
	ErrResultsNotOpen            = errors.New("tournament is not collecting results")
	ErrKnockoutRequiresWinner    = errors.New("knockout matches cannot end in a draw")
	ErrRewardPlanInvalid         = errors.New("reward plan is invalid")
	ErrMatchesIncomplete         = errors.New("tournament still has unplayed matches")
	ErrGroupStageIncomplete      = errors.New("group stage still has unplayed matches")
	ErrNotGroupKnockout          = errors.New("tournament has no group stage to finalize")
	ErrNoRankings                = errors.New("no rankings computed for tournament")

	// Conflict errors: duplicates and invalid sequencing.
	ErrMatchAlreadyCompleted             = errors.New("match result has already been recorded")
	ErrMatchVoid                         = errors.New("match was voided by tournament cancellation")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentCancelled               = errors.New("tournament is cancelled")
	ErrTournamentNotCompleted            = errors.New("tournament has not been completed")

	// Errors from entity lookups, more specific than ErrNotFound.
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrRewardPlanNotFound = errors.New("reward plan not found")
)
