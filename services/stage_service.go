package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/academyhq/tournament-engine/brackets"
	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
)

// StageService finalizes the group stage of group+knockout tournaments:
// per-group standings, qualifier selection, an immutable snapshot, and the
// seeded knockout bracket. Finalizing twice returns the stored snapshot and
// never reshuffles an already-seeded bracket.
type StageService interface {
	FinalizeGroupStage(ctx context.Context, tournamentID int) (*models.QualifierSnapshot, error)
}

type stageService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	snapshotRepo   repositories.QualifierSnapshotRepository
	logger         *slog.Logger
}

func NewStageService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	snapshotRepo repositories.QualifierSnapshotRepository,
	logger *slog.Logger,
) StageService {
	return &stageService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		snapshotRepo:   snapshotRepo,
		logger:         logger,
	}
}

func (s *stageService) FinalizeGroupStage(ctx context.Context, tournamentID int) (*models.QualifierSnapshot, error) {
	var snapshot *models.QualifierSnapshot

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Format != models.FormatHeadToHead || tournament.Kind == nil || *tournament.Kind != models.KindGroupKnockout {
			return ErrNotGroupKnockout
		}

		existing, err := s.snapshotRepo.GetByTournament(ctx, exec, tournamentID)
		if err == nil {
			snapshot = existing
			return nil
		}
		if !errors.Is(err, repositories.ErrSnapshotNotFound) {
			return err
		}

		if tournament.Status != models.StatusGroupStage {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, models.StatusKnockoutStage)
		}

		groupStage := models.StageGroup
		incomplete, err := s.matchRepo.CountIncomplete(ctx, exec, tournamentID, &groupStage)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return fmt.Errorf("%w: %d matches remaining", ErrGroupStageIncomplete, incomplete)
		}

		groupMatches, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID, repositories.ListMatchesFilter{Stage: &groupStage})
		if err != nil {
			return err
		}

		qualifiers := SelectQualifiers(tournamentID, groupMatches, tournament.QualifiersPerGroup)
		if len(qualifiers) < 2 {
			return fmt.Errorf("%w: only %d qualifiers", ErrInsufficientParticipants, len(qualifiers))
		}

		snapshot = &models.QualifierSnapshot{TournamentID: tournamentID, Qualifiers: qualifiers}
		if err := s.snapshotRepo.Create(ctx, exec, snapshot); err != nil {
			// A racing finalize beat us to it; the retry below reads theirs.
			return err
		}

		// The generator lays seeds into complement-paired slots, so passing
		// qualifiers in seed order keeps the top group winners in opposite
		// halves and hands byes to the top seeds.
		drawOrder := make([]int, len(qualifiers))
		for i, q := range qualifiers {
			drawOrder[i] = q.ParticipantID
		}
		generator := brackets.NewSingleEliminationGenerator(tournament.ThirdPlaceMatch)
		plan, err := generator.Generate(ctx, brackets.GenerateParams{
			Tournament:     tournament,
			ParticipantIDs: drawOrder,
			// Order is seeded from group results; no shuffle.
		})
		if err != nil {
			return fmt.Errorf("failed to generate knockout bracket for tournament %d: %w", tournamentID, err)
		}
		if _, err := persistPlannedMatches(ctx, exec, s.matchRepo, tournamentID, plan); err != nil {
			return err
		}

		return transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusKnockoutStage)
	})

	if errors.Is(err, repositories.ErrSnapshotExists) {
		// Lost a finalize race: the committed snapshot is authoritative.
		return s.snapshotRepo.GetByTournament(ctx, nil, tournamentID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "group stage finalized",
		slog.Int("tournament_id", tournamentID),
		slog.Int("qualifiers", len(snapshot.Qualifiers)))
	return snapshot, nil
}

// SelectQualifiers ranks each group with the standard standings rules and
// takes the top N per group. Qualifiers come back in seed order: all group
// winners first, then all runners-up, and so on.
func SelectQualifiers(tournamentID int, groupMatches []*models.Match, perGroup int) []models.Qualifier {
	if perGroup < 1 {
		perGroup = 2
	}

	byGroup := make(map[int][]*models.Match)
	for _, m := range groupMatches {
		if m.GroupNo == nil {
			continue
		}
		byGroup[*m.GroupNo] = append(byGroup[*m.GroupNo], m)
	}

	groupNos := make([]int, 0, len(byGroup))
	for groupNo := range byGroup {
		groupNos = append(groupNos, groupNo)
	}
	sort.Ints(groupNos)

	// ranked[g][r] = participant placed r+1 in group g.
	ranked := make(map[int][]int, len(byGroup))
	for _, groupNo := range groupNos {
		rows := ComputeHeadToHeadStandings(tournamentID, byGroup[groupNo])
		limit := perGroup
		if limit > len(rows) {
			limit = len(rows)
		}
		ids := make([]int, 0, limit)
		for _, row := range rows[:limit] {
			ids = append(ids, row.ParticipantID)
		}
		ranked[groupNo] = ids
	}

	var qualifiers []models.Qualifier
	seed := 0
	groupCount := len(groupNos)
	for level := 0; level < perGroup; level++ {
		for i := 0; i < groupCount; i++ {
			groupNo := groupNos[i]
			ids := ranked[groupNo]
			if level >= len(ids) {
				continue
			}
			seed++
			qualifiers = append(qualifiers, models.Qualifier{
				ParticipantID: ids[level],
				GroupNo:       groupNo,
				GroupRank:     level + 1,
				Seed:          seed,
			})
		}
	}
	return qualifiers
}
