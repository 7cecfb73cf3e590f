package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/academyhq/tournament-engine/brackets"
	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"github.com/google/uuid"
)

// GenerationResult is what a start-tournament trigger gets back. A duplicate
// trigger is indistinguishable from the first except for AlreadyGenerated.
type GenerationResult struct {
	TournamentID     int             `json:"tournament_id"`
	AlreadyGenerated bool            `json:"already_generated"`
	Dispatched       bool            `json:"dispatched"`
	JobID            string          `json:"job_id,omitempty"`
	Matches          []*models.Match `json:"matches"`
}

// GenerationJob is a background generation request for large cohorts.
type GenerationJob struct {
	JobID        string
	TournamentID int
	Attempt      int
}

// GenerationDispatcher hands a job to the background worker pool.
type GenerationDispatcher interface {
	Dispatch(job GenerationJob) error
}

type GenerationService interface {
	// StartTournament triggers session generation through the guard,
	// dispatching to the background pool for cohorts at or above the
	// configured threshold.
	StartTournament(ctx context.Context, tournamentID int) (*GenerationResult, error)
	// GenerateSessions is the guarded generation path itself; the worker
	// re-enters it on retries so the idempotency guarantee is identical
	// for synchronous and background execution.
	GenerateSessions(ctx context.Context, tournamentID int) (*GenerationResult, error)
}

type generationService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	matchRepo      repositories.MatchRepository
	dispatcher     GenerationDispatcher
	asyncThreshold int
	logger         *slog.Logger
}

func NewGenerationService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	matchRepo repositories.MatchRepository,
	dispatcher GenerationDispatcher,
	asyncThreshold int,
	logger *slog.Logger,
) GenerationService {
	return &generationService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		matchRepo:      matchRepo,
		dispatcher:     dispatcher,
		asyncThreshold: asyncThreshold,
		logger:         logger,
	}
}

func (s *generationService) StartTournament(ctx context.Context, tournamentID int) (*GenerationResult, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCancelled {
		return nil, ErrTournamentCancelled
	}
	if tournament.SessionsGenerated {
		return s.existingResult(ctx, tournamentID)
	}

	count, err := s.enrollmentRepo.CountByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if count < tournament.MinParticipants() {
		return nil, fmt.Errorf("%w: format %s needs %d, found %d",
			ErrInsufficientParticipants, tournament.Format, tournament.MinParticipants(), count)
	}

	if s.dispatcher != nil && s.asyncThreshold > 0 && count >= s.asyncThreshold {
		job := GenerationJob{JobID: uuid.NewString(), TournamentID: tournamentID}
		if err := s.dispatcher.Dispatch(job); err != nil {
			return nil, fmt.Errorf("failed to dispatch generation job for tournament %d: %w", tournamentID, err)
		}
		s.logger.InfoContext(ctx, "session generation dispatched to background pool",
			slog.Int("tournament_id", tournamentID),
			slog.String("job_id", job.JobID),
			slog.Int("enrolled", count))
		return &GenerationResult{TournamentID: tournamentID, Dispatched: true, JobID: job.JobID}, nil
	}

	return s.GenerateSessions(ctx, tournamentID)
}

func (s *generationService) GenerateSessions(ctx context.Context, tournamentID int) (*GenerationResult, error) {
	var claimed bool

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Status == models.StatusCancelled {
			return ErrTournamentCancelled
		}

		// Conditional flag write first: the row lock serializes racing
		// generators and exactly one of them claims the tournament. The
		// flag only becomes visible at commit, together with the matches.
		claimed, err = s.tournamentRepo.MarkSessionsGenerated(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		enrollments, err := s.enrollmentRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if len(enrollments) < tournament.MinParticipants() {
			return fmt.Errorf("%w: format %s needs %d, found %d",
				ErrInsufficientParticipants, tournament.Format, tournament.MinParticipants(), len(enrollments))
		}
		participantIDs := make([]int, len(enrollments))
		for i, e := range enrollments {
			participantIDs[i] = e.ParticipantID
		}

		generator, err := generatorFor(tournament)
		if err != nil {
			return err
		}
		plan, err := generator.Generate(ctx, brackets.GenerateParams{
			Tournament:     tournament,
			ParticipantIDs: participantIDs,
			// Seeding by tournament id keeps the draw reproducible across retries.
			Rand: drawRand(tournament),
		})
		if err != nil {
			return fmt.Errorf("failed to generate bracket for tournament %d: %w", tournamentID, err)
		}

		if _, err := persistPlannedMatches(ctx, exec, s.matchRepo, tournamentID, plan); err != nil {
			return err
		}

		if tournament.Status == models.StatusDraft {
			if err := transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusActive); err != nil {
				return err
			}
		}
		if tournament.Format == models.FormatHeadToHead && tournament.Kind != nil && *tournament.Kind == models.KindGroupKnockout {
			if err := transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusGroupStage); err != nil {
				return err
			}
		}

		s.logger.InfoContext(ctx, "sessions generated",
			slog.Int("tournament_id", tournamentID),
			slog.String("generator", generator.Name()),
			slog.Int("participants", len(participantIDs)),
			slog.Int("matches", len(plan)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !claimed {
		// Lost the race or a duplicate trigger: non-fatal, same matches back.
		s.logger.InfoContext(ctx, "duplicate generation trigger, returning existing sessions",
			slog.Int("tournament_id", tournamentID))
		return s.existingResult(ctx, tournamentID)
	}

	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, repositories.ListMatchesFilter{})
	if err != nil {
		return nil, err
	}
	return &GenerationResult{TournamentID: tournamentID, Matches: matches}, nil
}

func (s *generationService) existingResult(ctx context.Context, tournamentID int) (*GenerationResult, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, repositories.ListMatchesFilter{})
	if err != nil {
		return nil, err
	}
	return &GenerationResult{TournamentID: tournamentID, AlreadyGenerated: true, Matches: matches}, nil
}

func generatorFor(t *models.Tournament) (brackets.Generator, error) {
	if t.Format == models.FormatIndividualRanking {
		return brackets.NewScoringRoundsGenerator(), nil
	}
	if t.Kind == nil {
		return nil, fmt.Errorf("%w: head-to-head tournament %d has no bracket kind", ErrTournamentInvalidFormat, t.ID)
	}
	switch *t.Kind {
	case models.KindLeague:
		return brackets.NewRoundRobinGenerator(), nil
	case models.KindKnockout:
		return brackets.NewSingleEliminationGenerator(t.ThirdPlaceMatch), nil
	case models.KindGroupKnockout:
		return brackets.NewGroupStageGenerator(t.GroupCount), nil
	default:
		return nil, fmt.Errorf("%w: unsupported bracket kind %q", ErrTournamentInvalidFormat, *t.Kind)
	}
}

func drawRand(t *models.Tournament) *rand.Rand {
	// Only knockout open draws are shuffled; seeded stages get their order
	// from the caller.
	if t.Format == models.FormatHeadToHead && t.Kind != nil && *t.Kind == models.KindKnockout {
		return rand.New(rand.NewSource(int64(t.ID)))
	}
	return nil
}

// persistPlannedMatches writes a generated plan in two passes: create the
// playable matches, then wire the progression links by resolving bracket
// UIDs to row ids. Bye entries create no rows; the generator already
// advanced their participants into the next round's slots.
func persistPlannedMatches(ctx context.Context, exec repositories.SQLExecutor, matchRepo repositories.MatchRepository, tournamentID int, plan []*brackets.PlannedMatch) ([]*models.Match, error) {
	uidToID := make(map[string]int, len(plan))
	created := make([]*models.Match, 0, len(plan))

	for _, pm := range plan {
		if pm.IsBye {
			continue
		}
		match := &models.Match{
			TournamentID:    tournamentID,
			Round:           pm.Round,
			Stage:           pm.Stage,
			GroupNo:         pm.GroupNo,
			BracketUID:      &pm.UID,
			P1ParticipantID: pm.P1ParticipantID,
			P2ParticipantID: pm.P2ParticipantID,
			Status:          models.MatchStatusScheduled,
		}
		if err := matchRepo.Create(ctx, exec, match); err != nil {
			return nil, fmt.Errorf("failed to persist match %s: %w", pm.UID, err)
		}
		uidToID[pm.UID] = match.ID
		created = append(created, match)
	}

	// Second pass: for every persisted match, find where its winner and
	// loser go next.
	for _, source := range created {
		var nextID, winnerSlot, loserNextID, loserSlot *int
		for _, target := range plan {
			if target.IsBye {
				continue
			}
			targetID, ok := uidToID[target.UID]
			if !ok {
				continue
			}
			if target.SourceMatch1UID != nil && *target.SourceMatch1UID == *source.BracketUID {
				nextID, winnerSlot = intPtrCopy(targetID), intPtrCopy(1)
			} else if target.SourceMatch2UID != nil && *target.SourceMatch2UID == *source.BracketUID {
				nextID, winnerSlot = intPtrCopy(targetID), intPtrCopy(2)
			}
			if target.LoserSource1UID != nil && *target.LoserSource1UID == *source.BracketUID {
				loserNextID, loserSlot = intPtrCopy(targetID), intPtrCopy(1)
			} else if target.LoserSource2UID != nil && *target.LoserSource2UID == *source.BracketUID {
				loserNextID, loserSlot = intPtrCopy(targetID), intPtrCopy(2)
			}
		}
		if nextID == nil && loserNextID == nil {
			continue
		}
		if err := matchRepo.UpdateProgressionLinks(ctx, exec, source.ID, nextID, winnerSlot, loserNextID, loserSlot); err != nil {
			return nil, err
		}
		source.NextMatchID, source.WinnerToSlot = nextID, winnerSlot
		source.LoserNextMatchID, source.LoserToSlot = loserNextID, loserSlot
	}

	return created, nil
}

func intPtrCopy(v int) *int { return &v }
