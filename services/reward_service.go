package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"github.com/google/uuid"
)

// DistributionSummary reports one distribution run. A duplicate run is
// reported with AlreadyDistributed and zero new entries, never as an error.
type DistributionSummary struct {
	TournamentID        int   `json:"tournament_id"`
	AlreadyDistributed  bool  `json:"already_distributed"`
	NewEntriesCreated   int   `json:"new_entries_created"`
	ExistingEntries     int   `json:"existing_entries"`
	SkippedParticipants []int `json:"skipped_participants,omitempty"`
	DriftAlerts         int   `json:"drift_alerts"`
	TotalCredits        int   `json:"total_credits"`
	TotalXP             float64 `json:"total_xp"`
}

type RewardService interface {
	// SaveRewardPlan validates and stores the plan. Zero enabled skills is
	// rejected here, at configuration time; distribution never re-checks.
	SaveRewardPlan(ctx context.Context, plan *models.RewardPlan) error
	GetRewardPlan(ctx context.Context, tournamentID int) (*models.RewardPlan, error)
	// DistributeRewards writes placement credits, XP, skill points and
	// badges for every ranked participant, exactly once per
	// (participant, tournament, kind, reason). Pass a nil plan to use the
	// saved one.
	DistributeRewards(ctx context.Context, tournamentID int, plan *models.RewardPlan) (*DistributionSummary, error)
	ListLedger(ctx context.Context, tournamentID int) ([]*models.RewardLedgerEntry, error)
}

type rewardService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	rankingRepo    repositories.RankingRepository
	enrollmentRepo repositories.EnrollmentRepository
	rewardRepo     repositories.RewardRepository
	logger         *slog.Logger
}

func NewRewardService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	rankingRepo repositories.RankingRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	rewardRepo repositories.RewardRepository,
	logger *slog.Logger,
) RewardService {
	return &rewardService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		rankingRepo:    rankingRepo,
		enrollmentRepo: enrollmentRepo,
		rewardRepo:     rewardRepo,
		logger:         logger,
	}
}

func (s *rewardService) SaveRewardPlan(ctx context.Context, plan *models.RewardPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrRewardPlanInvalid, err)
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, plan.TournamentID)
	if err != nil {
		return err
	}
	if tournament.Status.IsTerminal() {
		return fmt.Errorf("%w: tournament %d is %s", ErrTournamentInvalidStatusTransition, tournament.ID, tournament.Status)
	}
	return s.rewardRepo.SaveRewardPlan(ctx, nil, plan)
}

func (s *rewardService) GetRewardPlan(ctx context.Context, tournamentID int) (*models.RewardPlan, error) {
	plan, err := s.rewardRepo.GetRewardPlan(ctx, nil, tournamentID)
	if errors.Is(err, repositories.ErrRewardPlanNotFound) {
		return nil, ErrRewardPlanNotFound
	}
	return plan, err
}

func (s *rewardService) ListLedger(ctx context.Context, tournamentID int) ([]*models.RewardLedgerEntry, error) {
	return s.rewardRepo.ListByTournament(ctx, nil, tournamentID)
}

func (s *rewardService) DistributeRewards(ctx context.Context, tournamentID int, plan *models.RewardPlan) (*DistributionSummary, error) {
	summary := &DistributionSummary{TournamentID: tournamentID}

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}

		switch tournament.Status {
		case models.StatusRewardsDistributed:
			summary.AlreadyDistributed = true
			existing, err := s.rewardRepo.CountByTournament(ctx, exec, tournamentID)
			if err != nil {
				return err
			}
			summary.ExistingEntries = existing
			return nil
		case models.StatusCancelled:
			return ErrTournamentCancelled
		case models.StatusCompleted:
			// The only state rewards run from.
		default:
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotCompleted, tournamentID, tournament.Status)
		}

		if plan == nil {
			plan, err = s.rewardRepo.GetRewardPlan(ctx, exec, tournamentID)
			if errors.Is(err, repositories.ErrRewardPlanNotFound) {
				return ErrRewardPlanNotFound
			}
			if err != nil {
				return err
			}
		}

		rankings, err := s.rankingRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		rankByParticipant := make(map[int]int, len(rankings))
		for _, row := range rankings {
			rankByParticipant[row.ParticipantID] = row.Rank
		}

		enrollments, err := s.enrollmentRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}

		for _, enrollment := range enrollments {
			rank, source, err := s.resolveRank(ctx, exec, tournamentID, enrollment, rankByParticipant)
			if err != nil {
				return err
			}
			if rank == nil {
				// No rank anywhere in the fallback chain: skip, never default.
				summary.SkippedParticipants = append(summary.SkippedParticipants, enrollment.ParticipantID)
				s.logger.WarnContext(ctx, "no resolvable rank, skipping rank-dependent rewards",
					slog.Int("tournament_id", tournamentID),
					slog.Int("participant_id", enrollment.ParticipantID))
				continue
			}

			if err := s.awardParticipant(ctx, exec, tournamentID, enrollment.ParticipantID, *rank, source, plan, summary); err != nil {
				return err
			}
		}

		return transitionStatus(ctx, exec, s.tournamentRepo, tournament, models.StatusRewardsDistributed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rewards distributed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("new_entries", summary.NewEntriesCreated),
		slog.Int("existing_entries", summary.ExistingEntries),
		slog.Int("drift_alerts", summary.DriftAlerts),
		slog.Bool("already_distributed", summary.AlreadyDistributed))
	return summary, nil
}

// resolveRank walks the fallback chain in strict priority order: the
// authoritative ranking row, then the enrollment placement record, then
// rank metadata from a previously snapshotted badge.
func (s *rewardService) resolveRank(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, enrollment *models.Enrollment, rankings map[int]int) (*int, string, error) {
	if rank, ok := rankings[enrollment.ParticipantID]; ok {
		return &rank, "rankings", nil
	}
	if enrollment.FinalPlacement != nil {
		return enrollment.FinalPlacement, "enrollment", nil
	}
	badgeRank, err := s.rewardRepo.LatestBadgeRank(ctx, exec, tournamentID, enrollment.ParticipantID)
	if err != nil {
		return nil, "", err
	}
	if badgeRank != nil {
		return badgeRank, "badge", nil
	}
	return nil, "", nil
}

func (s *rewardService) awardParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID, rank int, rankSource string, plan *models.RewardPlan, summary *DistributionSummary) error {
	tier := plan.TierForRank(rank)
	if tier == nil {
		return nil
	}

	// Champion-tier badge with a non-first rank means the stored ranking
	// data drifted from badge metadata. The numeric rewards still follow
	// the resolved rank; the contradiction is an alert, not a failure.
	if tier.BadgeTier != nil && *tier.BadgeTier == models.BadgeChampion && rank != 1 {
		summary.DriftAlerts++
		s.logger.ErrorContext(ctx, "reward data drift: champion badge with non-first rank",
			slog.Int("tournament_id", tournamentID),
			slog.Int("participant_id", participantID),
			slog.Int("resolved_rank", rank),
			slog.String("rank_source", rankSource))
	}

	write := func(kind models.RewardKind, amount float64, reason string, badgeTier *models.BadgeTier, skillID *string) error {
		entry := &models.RewardLedgerEntry{
			EntryUID:       uuid.NewString(),
			TournamentID:   tournamentID,
			ParticipantID:  participantID,
			Kind:           kind,
			Amount:         amount,
			BadgeTier:      badgeTier,
			SkillID:        skillID,
			ResolvedRank:   &rank,
			Reason:         reason,
			IdempotencyKey: models.RewardIdempotencyKey(tournamentID, participantID, kind, reason),
		}
		created, err := s.createOrFetchEntry(ctx, exec, entry)
		if err != nil {
			return err
		}
		if created {
			summary.NewEntriesCreated++
			switch kind {
			case models.RewardCredit:
				summary.TotalCredits += int(amount)
			case models.RewardXP:
				summary.TotalXP += amount
			}
		} else {
			summary.ExistingEntries++
		}
		return nil
	}

	if tier.Credits > 0 {
		if err := write(models.RewardCredit, float64(tier.Credits), "placement_credits", nil, nil); err != nil {
			return err
		}
	}

	// Skill points spread over the enabled weights; their XP conversion
	// rides on the placement XP entry.
	skills, totalWeight := plan.EnabledSkills()
	var bonusXP float64
	for _, sw := range skills {
		points := plan.SkillPointPool * sw.Weight / totalWeight
		skillID := sw.SkillID
		if err := write(models.RewardSkill, points, "skill_points:"+skillID, nil, &skillID); err != nil {
			return err
		}
		bonusXP += points * plan.ConversionRates[sw.Category]
	}

	xp := float64(plan.BaseXP)*tier.XPMultiplier + bonusXP
	if xp > 0 {
		if err := write(models.RewardXP, xp, "placement_xp", nil, nil); err != nil {
			return err
		}
	}

	if tier.BadgeTier != nil {
		if err := write(models.RewardBadge, 1, "placement_badge", tier.BadgeTier, nil); err != nil {
			return err
		}
	}
	return nil
}

// createOrFetchEntry is the idempotent create: write, and on an
// idempotency-key collision re-read the winning row instead of failing.
// No pre-check, so concurrent distributors race safely.
func (s *rewardService) createOrFetchEntry(ctx context.Context, exec repositories.SQLExecutor, entry *models.RewardLedgerEntry) (bool, error) {
	err := s.rewardRepo.CreateEntry(ctx, exec, entry)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, repositories.ErrRewardEntryExists) {
		return false, err
	}
	existing, err := s.rewardRepo.GetByIdempotencyKey(ctx, exec, entry.IdempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to re-read existing ledger entry %s: %w", entry.IdempotencyKey, err)
	}
	*entry = *existing
	return false, nil
}
