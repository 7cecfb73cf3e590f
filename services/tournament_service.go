package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// CreateTournamentInput carries everything needed to draft a tournament.
// Format-specific fields are validated against the chosen format; fields
// belonging to the other format are rejected rather than silently dropped.
type CreateTournamentInput struct {
	Name     string                  `json:"name"`
	Format   models.TournamentFormat `json:"format"`
	Capacity int                     `json:"capacity"`

	Kind               *models.HeadToHeadKind `json:"kind,omitempty"`
	GroupCount         int                    `json:"group_count,omitempty"`
	QualifiersPerGroup int                    `json:"qualifiers_per_group,omitempty"`
	ThirdPlaceMatch    bool                   `json:"third_place_match,omitempty"`

	Metric      *models.MetricKind       `json:"metric,omitempty"`
	Direction   *models.RankingDirection `json:"direction,omitempty"`
	RoundCount  int                      `json:"round_count,omitempty"`
	Aggregation *models.RoundAggregation `json:"aggregation,omitempty"`

	StartDate time.Time `json:"start_date"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetDetails returns the tournament with its matches and current
	// rankings attached.
	GetDetails(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	// Complete closes result collection once every match has an outcome,
	// runs the final ranking recompute and moves the tournament to
	// completed in one transaction.
	Complete(ctx context.Context, id int) (*models.Tournament, error)
	// Cancel voids all still-scheduled matches and moves the tournament to
	// its terminal cancelled state. Recorded results are kept.
	Cancel(ctx context.Context, id int) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error
	// AutoStartDueTournaments triggers session generation for every draft
	// tournament whose start date has passed. One failing tournament never
	// blocks the rest of the sweep.
	AutoStartDueTournaments(ctx context.Context, now time.Time) error
}

type tournamentService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	rankingRepo    repositories.RankingRepository
	rankingService RankingService
	generation     GenerationService
	logger         *slog.Logger
}

func NewTournamentService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	rankingRepo repositories.RankingRepository,
	rankingService RankingService,
	generation GenerationService,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		rankingRepo:    rankingRepo,
		rankingService: rankingService,
		generation:     generation,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	tournament, err := buildTournament(input)
	if err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("name", tournament.Name),
		slog.String("format", string(tournament.Format)))
	return tournament, nil
}

func buildTournament(input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.Capacity <= 0 {
		return nil, ErrTournamentInvalidCapacity
	}

	t := &models.Tournament{
		Name:      input.Name,
		Format:    input.Format,
		Status:    models.StatusDraft,
		Capacity:  input.Capacity,
		StartDate: input.StartDate,
	}
	if t.StartDate.IsZero() {
		t.StartDate = time.Now()
	}

	switch input.Format {
	case models.FormatHeadToHead:
		if input.Metric != nil || input.Direction != nil || input.Aggregation != nil {
			return nil, fmt.Errorf("%w: metric fields are not valid for head-to-head tournaments", ErrValidationFailed)
		}
		if input.Kind == nil {
			return nil, fmt.Errorf("%w: head-to-head tournaments require a bracket kind", ErrValidationFailed)
		}
		switch *input.Kind {
		case models.KindLeague, models.KindKnockout:
			if input.GroupCount != 0 || input.QualifiersPerGroup != 0 {
				return nil, fmt.Errorf("%w: group settings only apply to group_knockout", ErrValidationFailed)
			}
		case models.KindGroupKnockout:
			t.GroupCount = input.GroupCount
			if t.GroupCount == 0 {
				t.GroupCount = 2
			}
			if t.GroupCount < 2 {
				return nil, fmt.Errorf("%w: group_knockout needs at least 2 groups", ErrValidationFailed)
			}
			t.QualifiersPerGroup = input.QualifiersPerGroup
			if t.QualifiersPerGroup == 0 {
				t.QualifiersPerGroup = 2
			}
			if t.QualifiersPerGroup < 1 {
				return nil, fmt.Errorf("%w: qualifiers_per_group must be positive", ErrValidationFailed)
			}
		default:
			return nil, fmt.Errorf("%w: unknown bracket kind %q", ErrTournamentInvalidFormat, *input.Kind)
		}
		t.Kind = input.Kind
		t.ThirdPlaceMatch = input.ThirdPlaceMatch

	case models.FormatIndividualRanking:
		if input.Kind != nil || input.GroupCount != 0 || input.QualifiersPerGroup != 0 || input.ThirdPlaceMatch {
			return nil, fmt.Errorf("%w: bracket fields are not valid for individual-ranking tournaments", ErrValidationFailed)
		}
		if input.Metric == nil {
			return nil, fmt.Errorf("%w: individual-ranking tournaments require a metric", ErrValidationFailed)
		}
		switch *input.Metric {
		case models.MetricScore, models.MetricTime, models.MetricDistance, models.MetricPlacement, models.MetricRounds:
		default:
			return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidMetric, *input.Metric)
		}
		if input.Direction != nil && *input.Direction != models.DirectionAscending && *input.Direction != models.DirectionDescending {
			return nil, fmt.Errorf("%w: direction must be asc or desc", ErrValidationFailed)
		}
		if input.Aggregation != nil && *input.Aggregation != models.AggregateSum && *input.Aggregation != models.AggregateBest {
			return nil, fmt.Errorf("%w: aggregation must be sum or best", ErrValidationFailed)
		}
		t.Metric = input.Metric
		t.Direction = input.Direction
		t.Aggregation = input.Aggregation
		t.RoundCount = input.RoundCount
		if t.RoundCount == 0 {
			t.RoundCount = 1
		}
		if t.RoundCount < 1 {
			return nil, fmt.Errorf("%w: round_count must be positive", ErrValidationFailed)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, input.Format)
	}

	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return s.tournamentRepo.GetByID(ctx, nil, id)
}

func (s *tournamentService) GetDetails(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gctx, nil, id, repositories.ListMatchesFilter{})
		if err != nil {
			return fmt.Errorf("failed to load matches for tournament %d: %w", id, err)
		}
		tournament.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			tournament.Matches[i] = *m
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.rankingRepo.ListByTournament(gctx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to load rankings for tournament %d: %w", id, err)
		}
		tournament.Rankings = make([]models.RankingRow, len(rows))
		for i, r := range rows {
			tournament.Rankings[i] = *r
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.tournamentRepo.List(ctx, filter)
}

func (s *tournamentService) Complete(ctx context.Context, id int) (*models.Tournament, error) {
	var tournament *models.Tournament

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, id)
		if err != nil {
			return err
		}
		if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusRewardsDistributed {
			return nil
		}
		if !tournament.CollectingResults() && tournament.Status != models.StatusResultsComplete {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, models.StatusCompleted)
		}

		incomplete, err := s.matchRepo.CountIncomplete(ctx, exec, id, nil)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return fmt.Errorf("%w: %d remaining", ErrMatchesIncomplete, incomplete)
		}

		if tournament.Status != models.StatusResultsComplete {
			if err := transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusResultsComplete); err != nil {
				return err
			}
		}

		// The final recompute happens in the same transaction as the
		// transition so completed tournaments always have current standings.
		if _, err := s.rankingService.RecomputeInTx(ctx, exec, tournament); err != nil {
			return err
		}

		return transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament completed", slog.Int("tournament_id", id))
	return tournament, nil
}

func (s *tournamentService) Cancel(ctx context.Context, id int) (*models.Tournament, error) {
	var tournament *models.Tournament

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, id)
		if err != nil {
			return err
		}
		if tournament.Status == models.StatusCancelled {
			return nil
		}
		if tournament.Status.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, models.StatusCancelled)
		}

		voided, err := s.matchRepo.VoidScheduledByTournament(ctx, exec, id)
		if err != nil {
			return err
		}
		if err := transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusCancelled); err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "tournament cancelled",
			slog.Int("tournament_id", id),
			slog.Int64("voided_matches", voided))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if tournament.Status != models.StatusDraft && tournament.Status != models.StatusCancelled {
		return fmt.Errorf("%w: only draft or cancelled tournaments can be deleted", ErrTournamentInvalidStatusTransition)
	}
	return s.tournamentRepo.Delete(ctx, id)
}

func (s *tournamentService) AutoStartDueTournaments(ctx context.Context, now time.Time) error {
	due, err := s.tournamentRepo.ListDueToStart(ctx, nil, now)
	if err != nil {
		return fmt.Errorf("failed to list due tournaments: %w", err)
	}

	for _, tournament := range due {
		if _, err := s.generation.StartTournament(ctx, tournament.ID); err != nil {
			s.logger.ErrorContext(ctx, "auto-start failed",
				slog.Int("tournament_id", tournament.ID),
				slog.Any("error", err))
			continue
		}
		s.logger.InfoContext(ctx, "tournament auto-started",
			slog.Int("tournament_id", tournament.ID),
			slog.Time("start_date", tournament.StartDate))
	}
	return nil
}
