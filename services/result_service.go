package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
)

type ResultService interface {
	// SubmitResult validates the outcome against the tournament's format,
	// marks the match complete and advances knockout participants. Match
	// completion is monotonic: re-recording a completed match is a conflict.
	SubmitResult(ctx context.Context, matchID int, outcome models.Outcome) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error)
}

type resultService struct {
	txRunner       repositories.TxRunner
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
}

func NewResultService(
	txRunner repositories.TxRunner,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) ResultService {
	return &resultService{
		txRunner:       txRunner,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
	}
}

func (s *resultService) SubmitResult(ctx context.Context, matchID int, outcome models.Outcome) (*models.Match, error) {
	var updated *models.Match

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			return err
		}
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, match.TournamentID)
		if err != nil {
			return err
		}

		if !tournament.CollectingResults() {
			return fmt.Errorf("%w: tournament %d is %s", ErrResultsNotOpen, tournament.ID, tournament.Status)
		}
		switch match.Status {
		case models.MatchStatusCompleted:
			return ErrMatchAlreadyCompleted
		case models.MatchStatusVoid:
			return ErrMatchVoid
		}

		winnerID, err := validateOutcome(tournament, match, &outcome)
		if err != nil {
			return err
		}

		if err := s.matchRepo.UpdateOutcome(ctx, exec, match.ID, &outcome, models.MatchStatusCompleted, winnerID); err != nil {
			return err
		}
		match.Outcome = &outcome
		match.Status = models.MatchStatusCompleted
		match.WinnerParticipantID = winnerID

		if err := s.advanceKnockout(ctx, exec, match); err != nil {
			return err
		}

		updated = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("match_id", updated.ID),
		slog.Int("tournament_id", updated.TournamentID),
		slog.Int("round", updated.Round))
	return updated, nil
}

func (s *resultService) ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, nil, tournamentID, filter)
}

// validateOutcome checks the tagged-union payload against the declared
// format and derives the winner. The caller never supplies the result; it
// always comes from the scores.
func validateOutcome(tournament *models.Tournament, match *models.Match, outcome *models.Outcome) (*int, error) {
	if err := outcome.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutcomeShapeInvalid, err)
	}

	switch tournament.Format {
	case models.FormatHeadToHead:
		if outcome.Kind != models.OutcomeHeadToHead {
			return nil, fmt.Errorf("%w: head-to-head tournament requires a score pair, got %q",
				ErrOutcomeShapeInvalid, outcome.Kind)
		}
		if match.P1ParticipantID == nil || match.P2ParticipantID == nil {
			return nil, fmt.Errorf("%w: match %d is still waiting for participants",
				ErrOutcomeShapeInvalid, match.ID)
		}
		h2h := outcome.HeadToHead
		switch {
		case h2h.P1Score > h2h.P2Score:
			h2h.Result = models.ResultP1Win
			return match.P1ParticipantID, nil
		case h2h.P2Score > h2h.P1Score:
			h2h.Result = models.ResultP2Win
			return match.P2ParticipantID, nil
		default:
			if match.Stage == models.StageKnockout {
				return nil, ErrKnockoutRequiresWinner
			}
			h2h.Result = models.ResultDraw
			return nil, nil
		}

	case models.FormatIndividualRanking:
		if outcome.Kind != models.OutcomeMetric {
			return nil, fmt.Errorf("%w: individual-ranking tournament requires a metric value, got %q",
				ErrOutcomeShapeInvalid, outcome.Kind)
		}
		if tournament.Metric != nil && *tournament.Metric != models.MetricScore && outcome.Metric.Value < 0 {
			return nil, fmt.Errorf("%w: %s metric cannot be negative", ErrOutcomeShapeInvalid, *tournament.Metric)
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, tournament.Format)
	}
}

// advanceKnockout slots the winner (and, for semifinals feeding a playoff,
// the loser) into their next matches.
func (s *resultService) advanceKnockout(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.NextMatchID != nil && match.WinnerToSlot != nil && match.WinnerParticipantID != nil {
		if err := s.matchRepo.SetParticipantSlot(ctx, exec, *match.NextMatchID, *match.WinnerToSlot, match.WinnerParticipantID); err != nil {
			return fmt.Errorf("failed to advance winner of match %d: %w", match.ID, err)
		}
	}
	if match.LoserNextMatchID != nil && match.LoserToSlot != nil {
		if loserID := match.LoserParticipantID(); loserID != nil {
			if err := s.matchRepo.SetParticipantSlot(ctx, exec, *match.LoserNextMatchID, *match.LoserToSlot, loserID); err != nil {
				return fmt.Errorf("failed to advance loser of match %d: %w", match.ID, err)
			}
		}
	}
	return nil
}
